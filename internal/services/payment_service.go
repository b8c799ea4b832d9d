// internal/services/payment_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/pricing"
)

// PaymentService is the Stripe adapter around the order engine's payment
// axis. It never mutates order state directly: gateway outcomes are
// translated into RecordPaymentEvent calls, so every rule on the payment
// transition table applies to webhook traffic too.
type PaymentService struct {
	cfg    *config.Config
	orders *OrderService
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
}

func NewPaymentService(cfg *config.Config, orders *OrderService) *PaymentService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		cfg:    cfg,
		orders: orders,
	}
}

// CreatePaymentIntent opens a Stripe payment for the order's frozen total
// and moves the payment axis to processing.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, orderID, actingBuyerID uuid.UUID) (*PaymentIntentResponse, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actingBuyerID {
		return nil, apperrors.Unauthorized("only the buyer may pay for order %s", order.OrderNumber)
	}
	if !order.PaymentStatus.CanTransition(models.PaymentStatusProcessing) {
		return nil, apperrors.InvalidTransition("payment", order.PaymentStatus, models.PaymentStatusProcessing)
	}

	amountInCents := pricing.MinorUnits(order.Pricing.Total)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(order.Pricing.Currency),
	}
	params.AddMetadata("order_number", order.OrderNumber)
	params.AddMetadata("buyer_id", order.BuyerID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if _, err := s.orders.RecordPaymentEvent(ctx, orderID, models.PaymentStatusProcessing, pi.ID); err != nil {
		return nil, err
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
	}, nil
}

// HandleGatewayEvent maps a webhook callback onto the payment axis by order
// number. Unknown event types are ignored so gateway additions never break
// the endpoint.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, eventType, orderNumber, transactionRef string) error {
	var target models.PaymentStatus
	switch eventType {
	case "payment_intent.processing":
		target = models.PaymentStatusProcessing
	case "payment_intent.succeeded":
		target = models.PaymentStatusPaid
	case "payment_intent.payment_failed":
		target = models.PaymentStatusFailed
	default:
		logrus.WithField("event_type", eventType).Debug("Ignoring gateway event")
		return nil
	}

	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	_, err = s.orders.RecordPaymentEvent(ctx, order.ID, target, transactionRef)
	return err
}

// RefundOrder refunds a paid order through Stripe, then records the
// paid→refunded payment transition and the refunded fulfillment status.
func (s *PaymentService) RefundOrder(ctx context.Context, orderID, actorID uuid.UUID, actorType models.UserType, reason string) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Authorization and both axes must clear before money moves; a check
	// that only runs after the gateway call would leave a half-refunded
	// order behind on failure.
	if err := s.orders.authorizeFulfillment(order, models.OrderStatusRefunded, actorID, actorType); err != nil {
		return nil, err
	}
	if !order.PaymentStatus.CanTransition(models.PaymentStatusRefunded) {
		return nil, apperrors.InvalidTransition("payment", order.PaymentStatus, models.PaymentStatusRefunded)
	}
	if !order.Status.CanTransition(models.OrderStatusRefunded) {
		return nil, apperrors.InvalidTransition("order", order.Status, models.OrderStatusRefunded)
	}
	if order.PaidAt == nil {
		return nil, apperrors.InvalidState("order %s cannot be refunded before payment", order.OrderNumber)
	}

	if order.TransactionRef != "" {
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(order.TransactionRef),
		}
		if reason != "" {
			params.AddMetadata("reason", reason)
		}
		if _, err := refund.New(params); err != nil {
			return nil, fmt.Errorf("failed to create refund: %w", err)
		}
	}

	if _, err := s.orders.RecordPaymentEvent(ctx, orderID, models.PaymentStatusRefunded, order.TransactionRef); err != nil {
		return nil, err
	}

	return s.orders.AdvanceFulfillment(ctx, orderID, models.OrderStatusRefunded, actorID, actorType)
}
