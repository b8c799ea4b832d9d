// internal/models/order.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OrderItem struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description"`
	Variant     string     `json:"variant,omitempty"`
	Quantity    int        `json:"quantity"`
	Unit        string     `json:"unit,omitempty"`
	UnitPrice   float64    `json:"unit_price"`
	Subtotal    float64    `json:"subtotal"`
	Discount    float64    `json:"discount,omitempty"`
	Tax         float64    `json:"tax,omitempty"`
	LineTotal   float64    `json:"line_total"`
}

type OrderItemList []OrderItem

func (l OrderItemList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *OrderItemList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// PricingSnapshot is computed once at order creation and frozen. Later
// product-price changes never alter it.
type PricingSnapshot struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

func (p PricingSnapshot) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PricingSnapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, p)
}

type ShippingInfo struct {
	Method            string     `json:"method,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}

func (s ShippingInfo) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ShippingInfo) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

type Order struct {
	BaseModel
	OrderNumber     string          `json:"order_number" gorm:"size:40;uniqueIndex;not null"`
	BuyerID         uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID        uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	RFQID           *uuid.UUID      `json:"rfq_id,omitempty" gorm:"type:uuid;index"`
	QuoteID         *uuid.UUID      `json:"quote_id,omitempty" gorm:"type:uuid"`
	Items           OrderItemList   `json:"items" gorm:"type:jsonb;not null"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentMethod   string          `json:"payment_method" gorm:"size:50"`
	DeferredPayment bool            `json:"deferred_payment" gorm:"default:false"`
	TransactionRef  string          `json:"transaction_ref,omitempty" gorm:"size:255"`
	Pricing         PricingSnapshot `json:"pricing" gorm:"type:jsonb"`
	Shipping        ShippingInfo    `json:"shipping" gorm:"type:jsonb"`
	ShippingAddress Address         `json:"shipping_address" gorm:"type:jsonb"`
	BillingAddress  *Address        `json:"billing_address,omitempty" gorm:"type:jsonb"`
	Notes           string          `json:"notes,omitempty" gorm:"type:text"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
	Version         int             `json:"version" gorm:"not null;default:1"`

	// Relationships
	Buyer  User `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// orderNext is the fulfillment transition graph: a linear happy path with
// cancellation from the first two states and refund from any non-terminal
// state. The refund edge is additionally gated on a recorded payment, and
// the edges past confirmed on the payment axis; both checks live in the
// order engine since they span the two axes.
var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusConfirmed: true,
		OrderStatusCancelled: true,
		OrderStatusRefunded:  true,
	},
	OrderStatusConfirmed: {
		OrderStatusProcessing: true,
		OrderStatusCancelled:  true,
		OrderStatusRefunded:   true,
	},
	OrderStatusProcessing: {
		OrderStatusShipped:  true,
		OrderStatusRefunded: true,
	},
	OrderStatusShipped: {
		OrderStatusDelivered: true,
		OrderStatusRefunded:  true,
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

// paymentNext allows the pending→paid shortcut for instant payment methods;
// a failed payment must pass through a fresh processing attempt before paid.
var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentStatusPending: {
		PaymentStatusProcessing: true,
		PaymentStatusPaid:       true,
		PaymentStatusFailed:     true,
	},
	PaymentStatusProcessing: {
		PaymentStatusPaid:   true,
		PaymentStatusFailed: true,
	},
	PaymentStatusFailed: {
		PaymentStatusProcessing: true,
	},
	PaymentStatusPaid: {
		PaymentStatusRefunded: true,
	},
	PaymentStatusRefunded: {},
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return orderNext[s][to]
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderNext[s]) == 0
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	return paymentNext[s][to]
}

// shippingMutableStates bound the window in which the shipping sub-record
// may change: after confirmation, before the order reaches a resting state.
var shippingMutableStates = map[OrderStatus]bool{
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
}

func (s OrderStatus) ShippingMutable() bool {
	return shippingMutableStates[s]
}

// RequiresPaymentBefore reports whether moving to target needs a settled
// payment. Everything past confirmed ships goods, so payment must not be
// pending or failed unless the order is on deferred (invoice) terms.
func (o *Order) RequiresPaymentBefore(target OrderStatus) bool {
	if o.DeferredPayment {
		return false
	}
	switch target {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return o.PaymentStatus == PaymentStatusPending || o.PaymentStatus == PaymentStatusFailed
	}
	return false
}
