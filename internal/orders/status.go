package orders

import (
	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

// transitions is the order status machine. Delivered and cancelled are terminal.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:  {enums.OrderStatusApproved, enums.OrderStatusCancelled},
	enums.OrderStatusApproved: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:  {enums.OrderStatusDelivered},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from status.
func AllowedTransitions(status enums.OrderStatus) []enums.OrderStatus {
	next := transitions[status]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move order from "+string(from)+" to "+string(to)).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": AllowedTransitions(from),
		})
}
