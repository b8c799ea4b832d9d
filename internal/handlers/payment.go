// internal/handlers/payment.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/services"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	cfg            *config.Config
}

func NewPaymentHandler(paymentService *services.PaymentService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		cfg:            cfg,
	}
}

// POST /orders/:id/payment-intent
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), orderID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"payment_intent": intent})
}

// POST /orders/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`
	}
	// Body is optional for refunds
	c.ShouldBindJSON(&req)

	order, err := h.paymentService.RefundOrder(c.Request.Context(), orderID, actorID, actorType, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// POST /webhooks/stripe
// Signature-verified gateway callbacks. Stripe retries on non-2xx, so
// unknown event types and unknown orders are acknowledged rather than
// failed.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.cfg.Payment.StripeWebhookSecret)
	if err != nil {
		logrus.WithError(err).Warn("Stripe webhook signature verification failed")
		c.Status(http.StatusBadRequest)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		logrus.WithError(err).Error("Failed to parse payment intent from webhook")
		c.Status(http.StatusBadRequest)
		return
	}

	orderNumber := pi.Metadata["order_number"]
	if orderNumber == "" {
		// Not one of ours
		c.Status(http.StatusOK)
		return
	}

	if err := h.paymentService.HandleGatewayEvent(c.Request.Context(), string(event.Type), orderNumber, pi.ID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type":   event.Type,
			"order_number": orderNumber,
		}).Error("Failed to apply gateway event")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusOK)
}
