package orders

import (
	"testing"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusPendingPayment, true},
		{enums.OrderStatusPending, enums.OrderStatusProcessing, false},
		{enums.OrderStatusPendingPayment, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPaymentReceived, enums.OrderStatusCancelled, true},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled, false},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusCancelled, false},
		{enums.OrderStatusProcessing, enums.OrderStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRestorable(t *testing.T) {
	for _, s := range []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		if Restorable(s) {
			t.Errorf("%s should not restore stock", s)
		}
	}
	if !Restorable(enums.OrderStatusProcessing) {
		t.Error("processing should restore stock")
	}
}
