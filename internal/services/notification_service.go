// internal/services/notification_service.go
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/models"
)

// Event types published on terminal-state transitions.
const (
	EventRFQAccepted    = "RFQAccepted"
	EventRFQRejected    = "RFQRejected"
	EventRFQExpired     = "RFQExpired"
	EventRFQCancelled   = "RFQCancelled"
	EventOrderCreated   = "OrderCreated"
	EventOrderDelivered = "OrderDelivered"
	EventOrderCancelled = "OrderCancelled"
	EventOrderRefunded  = "OrderRefunded"
	EventPaymentPaid    = "PaymentPaid"
	EventPaymentFailed  = "PaymentFailed"
)

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NotificationService is the fire-and-forget event sink. Publishing never
// blocks a state transition and never reports failure to the caller; with
// no broker configured it degrades to structured logging.
type NotificationService struct {
	writer  *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewNotificationService(cfg config.KafkaConfig) *NotificationService {
	s := &NotificationService{
		inbox:   make(chan kafka.Message, 256),
		closeCh: make(chan struct{}),
	}

	if cfg.Enabled && len(cfg.Brokers) > 0 {
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventsTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		}
	}

	return s
}

// Start drains the inbox until ctx is cancelled, then flushes what remains.
func (s *NotificationService) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(s.inbox)
				for m := range s.inbox {
					s.write(m)
				}
				if s.writer != nil {
					if err := s.writer.Close(); err != nil {
						logrus.WithError(err).Error("Failed to close event writer")
					}
				}
				close(s.closeCh)
				return
			case m, ok := <-s.inbox:
				if !ok {
					return
				}
				s.write(m)
			}
		}
	}()
}

func (s *NotificationService) WaitClosed() { <-s.closeCh }

func (s *NotificationService) write(m kafka.Message) {
	if s.writer == nil {
		return
	}
	if err := s.writer.WriteMessages(context.Background(), m); err != nil {
		logrus.WithError(err).WithField("key", string(m.Key)).Error("Failed to publish event")
	}
}

// Publish enqueues one event. The correlation id is the owning document's
// number so downstream consumers can partition by entity.
func (s *NotificationService) Publish(eventType, correlationID string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Error("Failed to marshal event payload")
		return
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "wholesale-backend",
		CorrelationID: correlationID,
		Payload:       body,
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Error("Failed to marshal event envelope")
		return
	}

	logrus.WithFields(logrus.Fields{
		"event_type":     eventType,
		"correlation_id": correlationID,
	}).Info("Event emitted")

	if s.writer == nil {
		return
	}

	select {
	case s.inbox <- kafka.Message{Key: []byte(correlationID), Value: value, Time: time.Now()}:
	default:
		logrus.WithField("event_type", eventType).Warn("Event inbox full, dropping event")
	}
}

// RFQ terminal notifications

func (s *NotificationService) NotifyRFQAccepted(rfq *models.RFQ, quote *models.Quote, orderNumber string) {
	s.Publish(EventRFQAccepted, rfq.RFQNumber, map[string]interface{}{
		"rfq_id":       rfq.ID,
		"rfq_number":   rfq.RFQNumber,
		"buyer_id":     rfq.BuyerID,
		"quote_id":     quote.ID,
		"seller_id":    quote.SellerID,
		"total_amount": quote.TotalAmount,
		"order_number": orderNumber,
	})
}

func (s *NotificationService) NotifyRFQRejected(rfq *models.RFQ) {
	s.Publish(EventRFQRejected, rfq.RFQNumber, map[string]interface{}{
		"rfq_id":     rfq.ID,
		"rfq_number": rfq.RFQNumber,
		"buyer_id":   rfq.BuyerID,
	})
}

func (s *NotificationService) NotifyRFQExpired(rfq *models.RFQ) {
	s.Publish(EventRFQExpired, rfq.RFQNumber, map[string]interface{}{
		"rfq_id":     rfq.ID,
		"rfq_number": rfq.RFQNumber,
		"buyer_id":   rfq.BuyerID,
		"expired_at": rfq.ExpiresAt,
	})
}

func (s *NotificationService) NotifyRFQCancelled(rfq *models.RFQ) {
	s.Publish(EventRFQCancelled, rfq.RFQNumber, map[string]interface{}{
		"rfq_id":     rfq.ID,
		"rfq_number": rfq.RFQNumber,
		"buyer_id":   rfq.BuyerID,
	})
}

// Order notifications

func (s *NotificationService) NotifyOrderCreated(order *models.Order) {
	s.Publish(EventOrderCreated, order.OrderNumber, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
		"seller_id":    order.SellerID,
		"total":        order.Pricing.Total,
		"currency":     order.Pricing.Currency,
	})
}

func (s *NotificationService) NotifyOrderTerminal(order *models.Order) {
	var eventType string
	switch order.Status {
	case models.OrderStatusDelivered:
		eventType = EventOrderDelivered
	case models.OrderStatusCancelled:
		eventType = EventOrderCancelled
	case models.OrderStatusRefunded:
		eventType = EventOrderRefunded
	default:
		return
	}

	s.Publish(eventType, order.OrderNumber, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
		"seller_id":    order.SellerID,
		"status":       order.Status,
	})
}

func (s *NotificationService) NotifyPaymentEvent(order *models.Order) {
	var eventType string
	switch order.PaymentStatus {
	case models.PaymentStatusPaid:
		eventType = EventPaymentPaid
	case models.PaymentStatusFailed:
		eventType = EventPaymentFailed
	default:
		return
	}

	s.Publish(eventType, order.OrderNumber, map[string]interface{}{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"payment_status":  order.PaymentStatus,
		"transaction_ref": order.TransactionRef,
		"total":           order.Pricing.Total,
	})
}
