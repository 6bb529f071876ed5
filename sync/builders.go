package sync

import (
	"fmt"
	"time"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// courseBuilder turns one (order, line item) pair into a CourseRecord.
// Builders must not panic past the mapper boundary: a missing line item is
// reported as an error and the mapper logs it as a skip.
type courseBuilder func(order *commerce.Order, item *commerce.LineItem) (CourseRecord, error)

// builderFor returns the builder matching a course type
func builderFor(courseType CourseType) courseBuilder {
	switch courseType {
	case CourseTypeAssociates:
		return buildAssociatesCourse
	case CourseTypeProphetic:
		return buildPropheticCourse
	default:
		return buildGenericCourse
	}
}

// extractStudentInfo pulls the student fields out of a line item's
// customizations. Every lookup tolerates a missing label, so one absent
// customization never aborts the record build.
func extractStudentInfo(item *commerce.LineItem) StudentInfo {
	first, last := splitName(lookupCustomization(item.Customizations, labelName))

	return StudentInfo{
		FirstName:   first,
		LastName:    last,
		Email:       lookupCustomization(item.Customizations, labelEmail),
		Phone:       lookupPhone(item.Customizations, labelPhone),
		Gender:      lookupCustomization(item.Customizations, labelGender),
		Age:         lookupCustomization(item.Customizations, labelAge),
		StudentType: lookupCustomization(item.Customizations, labelStudentType),
		Password:    lookupCustomization(item.Customizations, labelPassword),
	}
}

// baseCourse fills the fields shared by every program builder
func baseCourse(courseType CourseType, order *commerce.Order, item *commerce.LineItem) CourseRecord {
	return CourseRecord{
		CourseType:  courseType,
		CourseName:  item.ProductName,
		Section:     lookupVariantOption(item.VariantOptions, optionSection),
		Plan:        lookupVariantOption(item.VariantOptions, optionPlan),
		CourseID:    item.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		ImageURL:    item.ImageURL,
		Student:     extractStudentInfo(item),
		LastUpdated: time.Now().UTC(),
	}
}

// buildAssociatesCourse builds an Associates Program course record. The
// level label is the section string passed through trimmed; placement and
// proficiency come from program-specific customizations.
func buildAssociatesCourse(order *commerce.Order, item *commerce.LineItem) (CourseRecord, error) {
	if item == nil {
		return CourseRecord{}, fmt.Errorf("associates builder: order %s has no line item", order.ID)
	}

	record := baseCourse(CourseTypeAssociates, order, item)
	record.Associates = &AssociatesDetails{
		Level:       record.Section,
		Plan:        record.Plan,
		Placement:   lookupCustomization(item.Customizations, labelPlacement),
		Proficiency: lookupCustomization(item.Customizations, labelProficiency),
	}
	return record, nil
}

// buildPropheticCourse builds a Prophetic Guidance course record. The module
// label is the section string passed through trimmed.
func buildPropheticCourse(order *commerce.Order, item *commerce.LineItem) (CourseRecord, error) {
	if item == nil {
		return CourseRecord{}, fmt.Errorf("prophetic builder: order %s has no line item", order.ID)
	}

	record := baseCourse(CourseTypeProphetic, order, item)
	record.Prophetic = &PropheticDetails{
		Module: record.Section,
		Plan:   record.Plan,
	}
	return record, nil
}

// buildGenericCourse tags unclassified products with the generic course type
// and passes the raw order through unchanged. No field extraction is
// attempted beyond the customer email, so the record can still resolve to a
// student document.
func buildGenericCourse(order *commerce.Order, item *commerce.LineItem) (CourseRecord, error) {
	if item == nil {
		return CourseRecord{}, fmt.Errorf("generic builder: order %s has no line item", order.ID)
	}

	return CourseRecord{
		CourseType:  CourseTypeGeneric,
		CourseName:  item.ProductName,
		CourseID:    order.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Student: StudentInfo{
			Email: order.CustomerEmail,
		},
		RawOrder:    order,
		LastUpdated: time.Now().UTC(),
	}, nil
}
