package sync

import "strings"

// Program keyword sets. Classification is a case-insensitive substring test;
// an empty product name matches no program.
var (
	associatesKeywords = []string{"associates", "associate's"}
	propheticKeywords  = []string{"prophetic", "guidance"}
)

// isAssociatesProgram reports whether a product name belongs to the
// Associates Program
func isAssociatesProgram(productName string) bool {
	return matchesAnyKeyword(productName, associatesKeywords)
}

// isPropheticGuidance reports whether a product name belongs to the
// Prophetic Guidance program
func isPropheticGuidance(productName string) bool {
	return matchesAnyKeyword(productName, propheticKeywords)
}

// classifyProduct resolves a product name to its course type. Classifiers
// run in fixed priority order and the first match wins; anything else is
// generic so unclassified products are never dropped.
func classifyProduct(productName string) CourseType {
	switch {
	case isAssociatesProgram(productName):
		return CourseTypeAssociates
	case isPropheticGuidance(productName):
		return CourseTypeProphetic
	default:
		return CourseTypeGeneric
	}
}

func matchesAnyKeyword(productName string, keywords []string) bool {
	name := strings.ToLower(strings.TrimSpace(productName))
	if name == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
