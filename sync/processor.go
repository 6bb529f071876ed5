package sync

import (
	"log/slog"

	"github.com/covenant/enrollsync/pocketbase/commerce"
)

// processOrders maps a batch of raw orders into a flat list of course
// records. Failures isolate per order: a panic while mapping one order is
// logged and that order's records are omitted, the rest of the batch still
// completes. An empty input yields an empty result, never an error.
func processOrders(orders []commerce.Order) []CourseRecord {
	var records []CourseRecord

	for i := range orders {
		mapped := mapOrderSafe(&orders[i])
		records = append(records, mapped...)
	}

	return records
}

// mapOrderSafe runs the mapper with panic recovery so one malformed order
// cannot take down the batch
func mapOrderSafe(order *commerce.Order) (records []CourseRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Order mapping panicked, omitting order", "order", order.ID, "panic", r)
			records = nil
		}
	}()

	return mapOrder(order)
}
