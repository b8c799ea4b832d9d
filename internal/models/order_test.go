// internal/models/order_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFulfillmentTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRefunded, true},
		{OrderStatusPending, OrderStatusProcessing, false}, // no skipping ahead
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, false}, // goods already moving
		{OrderStatusProcessing, OrderStatusRefunded, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusProcessing, false}, // no regression
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusRefunded, OrderStatusPending, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.allowed, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestFulfillmentTerminalStates(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())

	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusConfirmed.IsTerminal())
	assert.False(t, OrderStatusProcessing.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusPaid, true}, // instant methods
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusProcessing, PaymentStatusPaid, true},
		{PaymentStatusProcessing, PaymentStatusFailed, true},
		{PaymentStatusFailed, PaymentStatusProcessing, true}, // retry
		{PaymentStatusFailed, PaymentStatusPaid, false},      // must re-attempt first
		{PaymentStatusPaid, PaymentStatusRefunded, true},
		{PaymentStatusPaid, PaymentStatusProcessing, false},
		{PaymentStatusRefunded, PaymentStatusProcessing, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.allowed, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestShippingMutableWindow(t *testing.T) {
	assert.False(t, OrderStatusPending.ShippingMutable())
	assert.True(t, OrderStatusConfirmed.ShippingMutable())
	assert.True(t, OrderStatusProcessing.ShippingMutable())
	assert.True(t, OrderStatusShipped.ShippingMutable())
	assert.False(t, OrderStatusDelivered.ShippingMutable())
	assert.False(t, OrderStatusCancelled.ShippingMutable())
	assert.False(t, OrderStatusRefunded.ShippingMutable())
}

func TestRequiresPaymentBefore(t *testing.T) {
	unpaid := &Order{PaymentStatus: PaymentStatusPending}
	assert.False(t, unpaid.RequiresPaymentBefore(OrderStatusConfirmed))
	assert.True(t, unpaid.RequiresPaymentBefore(OrderStatusProcessing))
	assert.True(t, unpaid.RequiresPaymentBefore(OrderStatusShipped))
	assert.True(t, unpaid.RequiresPaymentBefore(OrderStatusDelivered))

	failed := &Order{PaymentStatus: PaymentStatusFailed}
	assert.True(t, failed.RequiresPaymentBefore(OrderStatusProcessing))

	paid := &Order{PaymentStatus: PaymentStatusPaid}
	assert.False(t, paid.RequiresPaymentBefore(OrderStatusProcessing))
	assert.False(t, paid.RequiresPaymentBefore(OrderStatusShipped))

	// Invoice terms relax the gate entirely
	deferred := &Order{PaymentStatus: PaymentStatusPending, DeferredPayment: true}
	assert.False(t, deferred.RequiresPaymentBefore(OrderStatusProcessing))
	assert.False(t, deferred.RequiresPaymentBefore(OrderStatusDelivered))
}
