package sync

import (
	"strings"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// Customization labels collected at purchase time. Label casing varies across
// storefront revisions, so lookups match case-insensitively after trimming.
const (
	labelName        = "Name"
	labelEmail       = "Email"
	labelPhone       = "Phone"
	labelGender      = "Gender"
	labelAge         = "Age"
	labelStudentType = "Student Type"
	labelPassword    = "Password"
	labelPlacement   = "Placement"
	labelProficiency = "Proficiency"
)

// Variant option names chosen at purchase time
const (
	optionPlan    = "Plan"
	optionSection = "Section"
)

// lookupCustomization returns the first customization value whose label
// matches case-insensitively (trimmed), or "" when none matches. Missing
// labels are a normal condition and never an error.
func lookupCustomization(items []commerce.NameValue, label string) string {
	want := strings.TrimSpace(label)
	for _, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.Label), want) {
			return strings.TrimSpace(item.Value)
		}
	}
	return ""
}

// lookupPhone looks up a phone-like customization and strips internal
// whitespace from the value ("07 123 456" -> "07123456")
func lookupPhone(items []commerce.NameValue, label string) string {
	return strings.Join(strings.Fields(lookupCustomization(items, label)), "")
}

// lookupVariantOption returns the first variant option value whose option
// name matches case-insensitively (trimmed), or "" when none matches
func lookupVariantOption(opts []commerce.VariantOption, name string) string {
	want := strings.TrimSpace(name)
	for _, opt := range opts {
		if strings.EqualFold(strings.TrimSpace(opt.OptionName), want) {
			return strings.TrimSpace(opt.Value)
		}
	}
	return ""
}

// splitName splits a full name into first and last on the first whitespace
// run. A single token becomes the first name with an empty last name.
func splitName(full string) (first, last string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
