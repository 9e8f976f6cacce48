package orders

import "github.com/angelmondragon/kitstock-backend/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:         {enums.OrderStatusPendingPayment, enums.OrderStatusCancelled},
	enums.OrderStatusPendingPayment:  {enums.OrderStatusPaymentReceived, enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusPaymentReceived: {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:         {enums.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
// Staying in the same status is never a transition.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Restorable reports whether cancelling from status returns committed stock.
func Restorable(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending,
		enums.OrderStatusPendingPayment,
		enums.OrderStatusPaymentReceived,
		enums.OrderStatusProcessing:
		return true
	}
	return false
}
