package orders

import "github.com/alifmarket/marketplace-backend/pkg/enums"

// allowedTransitions is the closed transition table for order status.
// Anything absent here is rejected; terminal states have no entries.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment:  {enums.OrderStatusPaymentReceived, enums.OrderStatusCancelled},
	enums.OrderStatusPaymentReceived: {enums.OrderStatusProcessing, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing:      {enums.OrderStatusShipped, enums.OrderStatusRefunded},
	enums.OrderStatusShipped:         {enums.OrderStatusDelivered, enums.OrderStatusRefunded},
	enums.OrderStatusDelivered:       {enums.OrderStatusCompleted, enums.OrderStatusRefunded},
}

// CanTransition reports whether moving an order from one status to
// another is legal under the transition table.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// sellerTargets are the statuses a seller may drive an order into
// through fulfilment updates. Everything else is webhook- or
// confirmation-driven.
var sellerTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusProcessing: true,
	enums.OrderStatusShipped:    true,
	enums.OrderStatusDelivered:  true,
}
