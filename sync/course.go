// Package sync provides the enrollment reconciliation pipeline between the
// commerce order source and the PocketBase student store.
package sync

import (
	"strings"
	"time"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// CourseType identifies the program a course record belongs to
type CourseType string

// Known program types. Unclassified products fall through to CourseTypeGeneric
// so they are never silently dropped.
const (
	CourseTypeAssociates CourseType = "associates"
	CourseTypeProphetic  CourseType = "prophetic"
	CourseTypeGeneric    CourseType = "generic"
)

// StudentInfo holds the student fields extracted from order customizations.
// Password is transient: it is used for credential provisioning and the
// welcome email only and must be stripped before any persistence.
type StudentInfo struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Age         string `json:"age,omitempty"`
	StudentType string `json:"studentType,omitempty"`
	Password    string `json:"password,omitempty"`
}

// FullName returns the display name for provisioning and notifications
func (s StudentInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// AssociatesDetails carries the Associates Program specific fields
type AssociatesDetails struct {
	Level       string `json:"level"`
	Plan        string `json:"plan"`
	Placement   string `json:"placement,omitempty"`
	Proficiency string `json:"proficiency,omitempty"`
}

// PropheticDetails carries the Prophetic Guidance specific fields
type PropheticDetails struct {
	Module string `json:"module"`
	Plan   string `json:"plan"`
}

// CourseRecord is the canonical per-student-per-enrollment unit produced by
// classification and extraction. Exactly one of the details fragments is set,
// matching CourseType; generic records keep the raw order instead.
type CourseRecord struct {
	CourseType  CourseType `json:"courseType"`
	CourseName  string     `json:"courseName"`
	Section     string     `json:"section,omitempty"`
	Plan        string     `json:"plan,omitempty"`
	CourseID    string     `json:"courseId,omitempty"`
	OrderID     string     `json:"orderId,omitempty"`
	OrderNumber string     `json:"orderNumber,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`

	Student StudentInfo `json:"studentInfo"`

	Associates *AssociatesDetails `json:"associates,omitempty"`
	Prophetic  *PropheticDetails  `json:"prophetic,omitempty"`
	RawOrder   *commerce.Order    `json:"rawOrder,omitempty"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// IdentityKey returns the canonical dedup key for a course record.
// Two records with the same key are the same enrollment, regardless of
// course ID or order number.
func (c CourseRecord) IdentityKey() string {
	return strings.Join([]string{
		normalizeKeyPart(string(c.CourseType)),
		normalizeKeyPart(c.CourseName),
		normalizeKeyPart(c.Section),
		normalizeKeyPart(c.Plan),
	}, "|")
}

// StripPassword returns a copy safe for persistence. Generic records carry
// the raw order, so Password-labeled customization values inside it are
// redacted too; no persisted form of a record may contain a password.
func (c CourseRecord) StripPassword() CourseRecord {
	stripped := c
	stripped.Student.Password = ""
	if c.RawOrder != nil {
		stripped.RawOrder = redactOrderPasswords(c.RawOrder)
	}
	return stripped
}

// redactOrderPasswords deep-copies an order with every Password-labeled
// customization value cleared. The input order is left untouched.
func redactOrderPasswords(order *commerce.Order) *commerce.Order {
	redacted := *order
	redacted.LineItems = append([]commerce.LineItem(nil), order.LineItems...)

	for i := range redacted.LineItems {
		item := &redacted.LineItems[i]
		if len(item.Customizations) == 0 {
			continue
		}
		cloned := append([]commerce.NameValue(nil), item.Customizations...)
		for j := range cloned {
			if strings.EqualFold(strings.TrimSpace(cloned[j].Label), labelPassword) {
				cloned[j].Value = ""
			}
		}
		item.Customizations = cloned
	}

	return &redacted
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail produces the store key for a student email
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
