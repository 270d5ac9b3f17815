package service

import "seafood-order-service/internal/models"

// lifecycle lists the statuses each status may move to. Delivered and
// cancelled are terminal.
var lifecycle = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
}

// CanTransition reports whether the lifecycle allows from -> to
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range lifecycle[from] {
		if next == to {
			return true
		}
	}
	return false
}
