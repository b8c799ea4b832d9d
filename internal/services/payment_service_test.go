// internal/services/payment_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/models"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	orders *OrderService
	svc    *PaymentService

	buyer  *models.User
	seller *models.User
	ctx    context.Context
}

func (s *PaymentServiceTestSuite) SetupTest() {
	db, conf, orders, _ := newEngine(s.T())
	s.db = db
	s.orders = orders
	s.svc = NewPaymentService(conf, orders)
	s.buyer = newTestUser(s.T(), s.db, models.UserTypeBuyer)
	s.seller = newTestUser(s.T(), s.db, models.UserTypeSeller)
	s.ctx = context.Background()
}

func (s *PaymentServiceTestSuite) newPaidOrder() *models.Order {
	order, err := s.orders.CreateFromItems(s.ctx, s.buyer.ID, &CreateOrderRequest{
		SellerID: s.seller.ID,
		Items: []OrderItemRequest{
			{Description: "Crate of valves", Quantity: 1, UnitPrice: 80},
		},
		PaymentMethod: "card",
		ShippingAddress: models.Address{
			Line1:   "4 Harbour Way",
			City:    "Hamburg",
			Country: "DE",
		},
	})
	s.Require().NoError(err)

	// No transaction ref so the refund path never reaches the gateway.
	_, err = s.orders.RecordPaymentEvent(s.ctx, order.ID, models.PaymentStatusPaid, "")
	s.Require().NoError(err)
	return order
}

func (s *PaymentServiceTestSuite) TestRefundRejectedBeforeAnyStateChanges() {
	order := s.newPaidOrder()
	for _, target := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		_, err := s.orders.AdvanceFulfillment(s.ctx, order.ID, target, s.seller.ID, models.UserTypeSeller)
		s.Require().NoError(err)
	}

	_, err := s.svc.RefundOrder(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, "damaged")
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	// The rejection must leave both axes exactly as they were.
	got, getErr := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(getErr)
	s.Equal(models.OrderStatusDelivered, got.Status)
	s.Equal(models.PaymentStatusPaid, got.PaymentStatus)
}

func (s *PaymentServiceTestSuite) TestRefundMovesBothAxes() {
	order := s.newPaidOrder()
	_, err := s.orders.AdvanceFulfillment(s.ctx, order.ID, models.OrderStatusConfirmed, s.seller.ID, models.UserTypeSeller)
	s.Require().NoError(err)

	got, err := s.svc.RefundOrder(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, "")
	s.Require().NoError(err)
	s.Equal(models.OrderStatusRefunded, got.Status)
	s.Equal(models.PaymentStatusRefunded, got.PaymentStatus)
	s.NotNil(got.RefundedAt)
}

func (s *PaymentServiceTestSuite) TestRefundBuyerCannotInitiate() {
	order := s.newPaidOrder()

	_, err := s.svc.RefundOrder(s.ctx, order.ID, s.buyer.ID, models.UserTypeBuyer, "")
	s.True(apperrors.HasCode(err, apperrors.CodeUnauthorized))

	got, getErr := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(getErr)
	s.Equal(models.PaymentStatusPaid, got.PaymentStatus)
}

func (s *PaymentServiceTestSuite) TestRefundRequiresRecordedPayment() {
	order, err := s.orders.CreateFromItems(s.ctx, s.buyer.ID, &CreateOrderRequest{
		SellerID: s.seller.ID,
		Items: []OrderItemRequest{
			{Description: "Crate of valves", Quantity: 1, UnitPrice: 80},
		},
		PaymentMethod: "card",
		ShippingAddress: models.Address{Line1: "4 Harbour Way", City: "Hamburg", Country: "DE"},
	})
	s.Require().NoError(err)

	_, err = s.svc.RefundOrder(s.ctx, order.ID, s.seller.ID, models.UserTypeSeller, "")
	s.True(apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	got, getErr := s.orders.Get(s.ctx, order.ID)
	s.Require().NoError(getErr)
	s.Equal(models.PaymentStatusPending, got.PaymentStatus)
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}
