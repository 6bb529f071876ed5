package sync

import (
	"testing"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

func serviceItem(id, product, studentName, email string) commerce.LineItem {
	return commerce.LineItem{
		ID:          id,
		Type:        commerce.LineItemTypeService,
		ProductName: product,
		Customizations: []commerce.NameValue{
			{Label: "Name", Value: studentName},
			{Label: "Email", Value: email},
		},
		VariantOptions: []commerce.VariantOption{
			{OptionName: "Plan", Value: "Full"},
			{OptionName: "Section", Value: "Year 1"},
		},
	}
}

func TestMapOrder_NoServiceItemsYieldsEmpty(t *testing.T) {
	order := &commerce.Order{
		ID: "O1",
		LineItems: []commerce.LineItem{
			{ID: "li-1", Type: "PHYSICAL", ProductName: "Textbook"},
			{ID: "li-2", Type: "PHYSICAL", ProductName: "Hoodie"},
		},
	}

	records := mapOrder(order)
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestMapOrder_EmptyOrder(t *testing.T) {
	if records := mapOrder(&commerce.Order{ID: "O1"}); len(records) != 0 {
		t.Errorf("expected no records for order without line items, got %d", len(records))
	}
	if records := mapOrder(nil); records != nil {
		t.Error("nil order should map to nil")
	}
}

// One order with two SERVICE line items for the same product is two
// students' enrollments, each with its own extracted info
func TestMapOrder_MultipleStudentsPerOrder(t *testing.T) {
	order := &commerce.Order{
		ID: "O1",
		LineItems: []commerce.LineItem{
			serviceItem("li-1", "Associates Program", "Amina Khan", "amina@example.com"),
			serviceItem("li-2", "Associates Program", "Daniel Okafor", "daniel@example.com"),
		},
	}

	records := mapOrder(order)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].Student.Email != "amina@example.com" {
		t.Errorf("first record email = %q, want amina@example.com", records[0].Student.Email)
	}
	if records[1].Student.Email != "daniel@example.com" {
		t.Errorf("second record email = %q, want daniel@example.com", records[1].Student.Email)
	}
	if records[0].Student.FirstName == records[1].Student.FirstName {
		t.Error("each record must carry its own student info")
	}
}

func TestMapOrder_MixedProductsAndTypes(t *testing.T) {
	order := &commerce.Order{
		ID:            "O1",
		CustomerEmail: "buyer@example.com",
		LineItems: []commerce.LineItem{
			serviceItem("li-1", "Associates Program", "Amina Khan", "amina@example.com"),
			{ID: "li-2", Type: "PHYSICAL", ProductName: "Textbook"},
			serviceItem("li-3", "Prophetic Guidance", "Daniel Okafor", "daniel@example.com"),
			{ID: "li-4", Type: commerce.LineItemTypeService, ProductName: "Conference Ticket"},
		},
	}

	records := mapOrder(order)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	types := map[CourseType]int{}
	for _, record := range records {
		types[record.CourseType]++
	}
	if types[CourseTypeAssociates] != 1 || types[CourseTypeProphetic] != 1 || types[CourseTypeGeneric] != 1 {
		t.Errorf("unexpected type distribution: %v", types)
	}
}

// The Amina Khan end-to-end extraction scenario
func TestMapOrder_ExtractionScenario(t *testing.T) {
	order := &commerce.Order{
		ID: "O1",
		LineItems: []commerce.LineItem{
			{
				Type:        commerce.LineItemTypeService,
				ProductName: "Associates Program",
				Customizations: []commerce.NameValue{
					{Label: "Name", Value: "Amina Khan"},
					{Label: "Email", Value: "amina@example.com"},
				},
				VariantOptions: []commerce.VariantOption{
					{OptionName: "Plan", Value: "Full"},
					{OptionName: "Section", Value: "Year 1"},
				},
			},
		},
	}

	records := mapOrder(order)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.Student.FirstName != "Amina" || record.Student.LastName != "Khan" {
		t.Errorf("name = %q %q, want Amina Khan", record.Student.FirstName, record.Student.LastName)
	}
	if record.Student.Email != "amina@example.com" {
		t.Errorf("email = %q", record.Student.Email)
	}
	if record.Associates == nil || record.Associates.Level != "Year 1" || record.Associates.Plan != "Full" {
		t.Errorf("details = %+v, want level Year 1 plan Full", record.Associates)
	}
}

func TestProcessOrders_EmptyInput(t *testing.T) {
	if records := processOrders(nil); len(records) != 0 {
		t.Errorf("expected empty result, got %d records", len(records))
	}
	if records := processOrders([]commerce.Order{}); len(records) != 0 {
		t.Errorf("expected empty result, got %d records", len(records))
	}
}

func TestProcessOrders_FlattensAcrossOrders(t *testing.T) {
	orders := []commerce.Order{
		{
			ID: "O1",
			LineItems: []commerce.LineItem{
				serviceItem("li-1", "Associates Program", "Amina Khan", "amina@example.com"),
			},
		},
		{
			ID: "O2",
			LineItems: []commerce.LineItem{
				serviceItem("li-2", "Prophetic Guidance", "Daniel Okafor", "daniel@example.com"),
			},
		},
		{
			// No service items: contributes nothing, does not abort the batch
			ID:        "O3",
			LineItems: []commerce.LineItem{{ID: "li-3", Type: "PHYSICAL", ProductName: "Textbook"}},
		},
	}

	records := processOrders(orders)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].OrderID != "O1" || records[1].OrderID != "O2" {
		t.Errorf("records out of order: %q, %q", records[0].OrderID, records[1].OrderID)
	}
}
