package receipts

// OrderFulfilled decides whether every order line is fully accounted for.
// accounted maps order_item_id to the sum of received, damaged and returned
// quantities across all receipts for the order, including the one being
// created. A line with no receipt rows counts as zero.
func OrderFulfilled(lines []OrderLine, accounted map[int64]float64) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if accounted[line.OrderItemID] < line.Ordered {
			return false
		}
	}
	return true
}
