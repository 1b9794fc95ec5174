package orders

import (
	"testing"

	"github.com/angelmondragon/medcart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medcart-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	all := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusApproved,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	}
	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusApproved}:   true,
		{enums.OrderStatusPending, enums.OrderStatusCancelled}:  true,
		{enums.OrderStatusApproved, enums.OrderStatusShipped}:   true,
		{enums.OrderStatusApproved, enums.OrderStatusCancelled}: true,
		{enums.OrderStatusShipped, enums.OrderStatusDelivered}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]enums.OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("%s -> %s: expected %v got %v", from, to, want, got)
			}
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		if next := AllowedTransitions(status); len(next) != 0 {
			t.Fatalf("%s should be terminal, got %v", status, next)
		}
		if !status.IsTerminal() {
			t.Fatalf("%s should report terminal", status)
		}
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := invalidTransition(enums.OrderStatusShipped, enums.OrderStatusCancelled)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}
}
