// internal/services/order_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *OrderService

	buyer  *models.User
	seller *models.User
	admin  *models.User
	ctx    context.Context
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.db, _, s.svc, _ = newEngine(s.T())
	s.buyer = newTestUser(s.T(), s.db, models.UserTypeBuyer)
	s.seller = newTestUser(s.T(), s.db, models.UserTypeSeller)
	s.admin = newTestUser(s.T(), s.db, models.UserTypeAdmin)
	s.ctx = context.Background()
}

func (s *OrderServiceTestSuite) createOrder(mutate ...func(*CreateOrderRequest)) *models.Order {
	req := &CreateOrderRequest{
		SellerID: s.seller.ID,
		Items: []OrderItemRequest{
			{Description: "Pallet of copper fittings", Quantity: 2, UnitPrice: 100},
		},
		PaymentMethod: "card",
		ShippingAddress: models.Address{
			Line1:   "12 Dock Road",
			City:    "Rotterdam",
			Country: "NL",
		},
	}
	for _, m := range mutate {
		m(req)
	}
	order, err := s.svc.CreateFromItems(s.ctx, s.buyer.ID, req)
	s.Require().NoError(err)
	return order
}

func (s *OrderServiceTestSuite) markPaid(orderID uuid.UUID) {
	_, err := s.svc.RecordPaymentEvent(s.ctx, orderID, models.PaymentStatusPaid, "ch_test")
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) advance(orderID uuid.UUID, target models.OrderStatus) (*models.Order, error) {
	return s.svc.AdvanceFulfillment(s.ctx, orderID, target, s.seller.ID, models.UserTypeSeller)
}

func (s *OrderServiceTestSuite) TestCreateStartsPendingUnpaid() {
	order := s.createOrder()

	s.Equal(models.OrderStatusPending, order.Status)
	s.Equal(models.PaymentStatusPending, order.PaymentStatus)
	s.Regexp(`^ORD-\d{8}-\d{6}$`, order.OrderNumber)
	s.False(order.DeferredPayment)
	// 2 x 100 plus flat 25 shipping, no tax on direct checkout
	s.Equal(225.0, order.Pricing.Total)
	// Billing falls back to shipping when not given
	s.Require().NotNil(order.BillingAddress)
	s.Equal("12 Dock Road", order.BillingAddress.Line1)
}

func (s *OrderServiceTestSuite) TestCreateRequiresItems() {
	_, err := s.svc.CreateFromItems(s.ctx, s.buyer.ID, &CreateOrderRequest{
		SellerID:        s.seller.ID,
		PaymentMethod:   "card",
		ShippingAddress: models.Address{Line1: "12 Dock Road", City: "Rotterdam", Country: "NL"},
	})
	s.True(apperrors.HasCode(err, apperrors.CodeValidation))
}

func (s *OrderServiceTestSuite) TestSnapshotFrozenAgainstCatalogChanges() {
	product := &models.Product{
		SellerID: s.seller.ID,
		Name:     "Industrial valve",
		Price:    40,
		Unit:     "piece",
		Status:   models.ProductStatusActive,
	}
	s.Require().NoError(s.db.Create(product).Error)

	order := s.createOrder(func(r *CreateOrderRequest) {
		r.Items = []OrderItemRequest{{ProductID: &product.ID, Quantity: 3}}
	})
	s.Equal(145.0, order.Pricing.Total) // 3 x 40 + 25 shipping
	s.Equal(40.0, order.Items[0].UnitPrice)
	s.Equal("Industrial valve", order.Items[0].Description)

	// A later price change never reaches back into the order
	s.Require().NoError(s.db.Model(product).Update("price", 99).Error)

	reloaded, err := s.svc.Get(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(145.0, reloaded.Pricing.Total)
	s.Equal(40.0, reloaded.Items[0].UnitPrice)
}

func (s *OrderServiceTestSuite) TestFulfillmentIsLinear() {
	order := s.createOrder()

	// Skipping confirmed is rejected
	_, err := s.advance(order.ID, models.OrderStatusProcessing)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	_, err = s.advance(order.ID, models.OrderStatusShipped)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	confirmed, err := s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusConfirmed, confirmed.Status)
	s.NotNil(confirmed.ConfirmedAt)

	// No regression either
	_, err = s.advance(order.ID, models.OrderStatusPending)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func (s *OrderServiceTestSuite) TestPaymentGatesShipment() {
	order := s.createOrder()
	_, err := s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)

	// Unpaid: goods must not start moving
	_, err = s.advance(order.ID, models.OrderStatusProcessing)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidState))

	s.markPaid(order.ID)

	processing, err := s.advance(order.ID, models.OrderStatusProcessing)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusProcessing, processing.Status)

	shipped, err := s.advance(order.ID, models.OrderStatusShipped)
	s.Require().NoError(err)
	s.NotNil(shipped.ShippedAt)

	delivered, err := s.svc.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusDelivered, s.buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusDelivered, delivered.Status)
	s.NotNil(delivered.DeliveredAt)
}

func (s *OrderServiceTestSuite) TestDeferredTermsRelaxPaymentGate() {
	order := s.createOrder(func(r *CreateOrderRequest) {
		r.PaymentMethod = "invoice"
	})
	s.True(order.DeferredPayment)

	_, err := s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)

	// Ships unpaid on invoice terms
	processing, err := s.advance(order.ID, models.OrderStatusProcessing)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusPending, processing.PaymentStatus)
}

func (s *OrderServiceTestSuite) TestRefundRequiresRecordedPayment() {
	order := s.createOrder()
	_, err := s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)

	_, err = s.advance(order.ID, models.OrderStatusRefunded)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidState))

	s.markPaid(order.ID)

	refunded, err := s.advance(order.ID, models.OrderStatusRefunded)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusRefunded, refunded.Status)
	s.NotNil(refunded.RefundedAt)

	// Payment axis follows independently
	after, err := s.svc.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusRefunded, "")
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusRefunded, after.PaymentStatus)
}

func (s *OrderServiceTestSuite) TestFailedPaymentMustRetryBeforePaid() {
	order := s.createOrder()

	_, err := s.svc.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusFailed, "pi_1")
	s.Require().NoError(err)

	_, err = s.svc.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusPaid, "pi_1")
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = s.svc.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusProcessing, "pi_2")
	s.Require().NoError(err)

	after, err := s.svc.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusPaid, "pi_2")
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusPaid, after.PaymentStatus)
	s.NotNil(after.PaidAt)
	s.Equal("pi_2", after.TransactionRef)
}

func (s *OrderServiceTestSuite) TestOnlySellerMovesGoods() {
	order := s.createOrder()

	_, err := s.svc.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusConfirmed, s.buyer.ID, models.UserTypeBuyer)
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))

	stranger := uuid.New()
	_, err = s.svc.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusConfirmed, stranger, models.UserTypeSeller)
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))

	// Admin bypasses party checks
	confirmed, err := s.svc.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusConfirmed, s.admin.ID, models.UserTypeAdmin)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusConfirmed, confirmed.Status)
}

func (s *OrderServiceTestSuite) TestShippingMutableWindow() {
	order := s.createOrder()
	tracking := &ShippingUpdateRequest{Carrier: "DHL", TrackingNumber: "JD014600003RT"}

	// Locked while pending
	_, err := s.svc.UpdateShipping(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, tracking)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)

	updated, err := s.svc.UpdateShipping(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, tracking)
	s.Require().NoError(err)
	s.Equal("DHL", updated.Shipping.Carrier)
	s.Equal("JD014600003RT", updated.Shipping.TrackingNumber)

	// Buyer may not touch shipping
	_, err = s.svc.UpdateShipping(s.ctx, order.ID, s.buyer.ID, models.UserTypeBuyer, tracking)
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))

	// Locked again once delivered
	s.markPaid(order.ID)
	_, err = s.advance(order.ID, models.OrderStatusProcessing)
	s.Require().NoError(err)
	_, err = s.advance(order.ID, models.OrderStatusShipped)
	s.Require().NoError(err)
	_, err = s.svc.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusDelivered, s.buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)

	_, err = s.svc.UpdateShipping(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, tracking)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func (s *OrderServiceTestSuite) TestCancelIsIdempotent() {
	order := s.createOrder()

	first, err := s.svc.Cancel(s.ctx, order.ID, s.buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, first.Status)
	s.NotNil(first.CancelledAt)

	second, err := s.svc.Cancel(s.ctx, order.ID, s.buyer.ID, models.UserTypeBuyer)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, second.Status)
}

func (s *OrderServiceTestSuite) TestCancelBlockedOnceGoodsMove() {
	order := s.createOrder(func(r *CreateOrderRequest) {
		r.PaymentMethod = "invoice"
	})
	_, err := s.advance(order.ID, models.OrderStatusConfirmed)
	s.Require().NoError(err)
	_, err = s.advance(order.ID, models.OrderStatusProcessing)
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, order.ID, s.buyer.ID, models.UserTypeBuyer)
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func (s *OrderServiceTestSuite) TestStaleVersionConflicts() {
	order := s.createOrder()
	stale, err := s.svc.Get(s.ctx, order.ID)
	s.Require().NoError(err)

	// A concurrent writer bumps the row first
	s.Require().NoError(s.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("version", stale.Version+1).Error)

	err = s.svc.applyVersioned(s.ctx, stale, map[string]interface{}{"notes": "late"})
	s.True(apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}
