package sync

import (
	"log/slog"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// mapOrder turns an order into course records, one per SERVICE line item.
// Non-service lines (physical goods) are ignored. Items are grouped by
// product name and classified once per group, then the builder runs once per
// line item in the group: that is how one order carries several students'
// enrollments for the same product. A builder failure is logged and isolates
// to its line item; other groups in the same order still complete.
func mapOrder(order *commerce.Order) []CourseRecord {
	if order == nil {
		return nil
	}

	// Group SERVICE items by product name, preserving original line-item
	// order within each group
	groups := make(map[string][]*commerce.LineItem)
	var productOrder []string

	for i := range order.LineItems {
		item := &order.LineItems[i]
		if item.Type != commerce.LineItemTypeService {
			continue
		}
		if _, seen := groups[item.ProductName]; !seen {
			productOrder = append(productOrder, item.ProductName)
		}
		groups[item.ProductName] = append(groups[item.ProductName], item)
	}

	var records []CourseRecord
	for _, productName := range productOrder {
		courseType := classifyProduct(productName)
		build := builderFor(courseType)

		for _, item := range groups[productName] {
			record, err := build(order, item)
			if err != nil {
				slog.Warn("Skipping line item",
					"order", order.ID, "product", productName, "error", err)
				continue
			}
			records = append(records, record)
		}
	}

	return records
}
