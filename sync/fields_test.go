package sync

import (
	"testing"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

func TestLookupCustomization(t *testing.T) {
	customizations := []commerce.NameValue{
		{Label: "Name", Value: "Amina Khan"},
		{Label: "  email  ", Value: " amina@example.com "},
		{Label: "Email", Value: "second@example.com"},
	}

	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{
			name:     "exact match",
			label:    "Name",
			expected: "Amina Khan",
		},
		{
			name:     "case-insensitive match",
			label:    "EMAIL",
			expected: "amina@example.com",
		},
		{
			name:     "first match wins on duplicate labels",
			label:    "Email",
			expected: "amina@example.com",
		},
		{
			name:     "missing label yields empty default",
			label:    "Phone",
			expected: "",
		},
		{
			name:     "requested label is trimmed",
			label:    " Name ",
			expected: "Amina Khan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lookupCustomization(customizations, tt.label)
			if got != tt.expected {
				t.Errorf("lookupCustomization(%q) = %q, want %q", tt.label, got, tt.expected)
			}
		})
	}
}

func TestLookupCustomization_EmptyList(t *testing.T) {
	if got := lookupCustomization(nil, "Name"); got != "" {
		t.Errorf("lookup on nil list = %q, want empty", got)
	}
}

func TestLookupPhone_StripsInternalWhitespace(t *testing.T) {
	customizations := []commerce.NameValue{
		{Label: "Phone", Value: " +27 82 123 4567 "},
	}

	got := lookupPhone(customizations, "Phone")
	want := "+27821234567"
	if got != want {
		t.Errorf("lookupPhone = %q, want %q", got, want)
	}
}

func TestLookupVariantOption(t *testing.T) {
	opts := []commerce.VariantOption{
		{OptionName: "Plan", Value: "Full"},
		{OptionName: "Section", Value: " Year 1 "},
	}

	tests := []struct {
		name     string
		option   string
		expected string
	}{
		{name: "plan", option: "Plan", expected: "Full"},
		{name: "section trimmed", option: "Section", expected: "Year 1"},
		{name: "case-insensitive", option: "plan", expected: "Full"},
		{name: "missing option", option: "Color", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lookupVariantOption(opts, tt.option)
			if got != tt.expected {
				t.Errorf("lookupVariantOption(%q) = %q, want %q", tt.option, got, tt.expected)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFirst string
		wantLast  string
	}{
		{name: "first and last", input: "Amina Khan", wantFirst: "Amina", wantLast: "Khan"},
		{name: "multi-part last name", input: "Mary Jane Watson", wantFirst: "Mary", wantLast: "Jane Watson"},
		{name: "single token", input: "Amina", wantFirst: "Amina", wantLast: ""},
		{name: "extra whitespace run", input: "  Amina   Khan  ", wantFirst: "Amina", wantLast: "Khan"},
		{name: "empty", input: "", wantFirst: "", wantLast: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := splitName(tt.input)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Errorf("splitName(%q) = (%q, %q), want (%q, %q)",
					tt.input, first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}
