// internal/services/rfq_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/marketbridge/wholesale-backend/internal/apperrors"
	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/pricing"
	"github.com/marketbridge/wholesale-backend/internal/sequence"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

// RFQService owns the buyer-initiated negotiation: who may quote, when
// quoting is allowed, and how a winner is chosen. Acceptance is exclusive
// and irreversible; the engine imposes no automatic ranking on quotes.
type RFQService struct {
	db            *gorm.DB
	cfg           *config.Config
	seq           *sequence.Generator
	orders        *OrderService
	notifications *NotificationService
}

type RFQItemRequest struct {
	ProductID      *uuid.UUID        `json:"product_id,omitempty"`
	Description    string            `json:"description" validate:"required"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Quantity       int               `json:"quantity" validate:"required,min=1"`
	Unit           string            `json:"unit,omitempty"`
	TargetPrice    *float64          `json:"target_price,omitempty" validate:"omitempty,min=0"`
	Attachments    []string          `json:"attachments,omitempty"`
}

type CreateRFQRequest struct {
	Title           string                 `json:"title,omitempty" validate:"omitempty,max=255"`
	Items           []RFQItemRequest       `json:"items" validate:"required,min=1,dive"`
	Requirements    models.RFQRequirements `json:"requirements,omitempty"`
	TargetSellerIDs []uuid.UUID            `json:"target_seller_ids,omitempty"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
}

type QuoteLineRequest struct {
	ItemIndex int     `json:"item_index" validate:"min=0"`
	UnitPrice float64 `json:"unit_price" validate:"min=0"`
	LineTotal float64 `json:"line_total" validate:"min=0"`
	Notes     string  `json:"notes,omitempty"`
}

type SubmitQuoteRequest struct {
	Lines         []QuoteLineRequest `json:"lines" validate:"required,min=1,dive"`
	TotalAmount   float64            `json:"total_amount" validate:"min=0"`
	Currency      string             `json:"currency,omitempty" validate:"omitempty,currency"`
	ValidUntil    *time.Time         `json:"valid_until,omitempty"`
	DeliveryTerms string             `json:"delivery_terms,omitempty"`
	PaymentTerms  string             `json:"payment_terms,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

// QuoteComparison is a read-only view over a quote set; ranking is a
// presentation concern and never constrains which quote the buyer accepts.
type QuoteComparison struct {
	QuoteID       uuid.UUID          `json:"quote_id"`
	SellerID      uuid.UUID          `json:"seller_id"`
	TotalAmount   float64            `json:"total_amount"`
	ValidUntil    *time.Time         `json:"valid_until,omitempty"`
	DeliveryTerms string             `json:"delivery_terms,omitempty"`
	Status        models.QuoteStatus `json:"status"`
	Lowest        bool               `json:"lowest"`
}

func NewRFQService(db *gorm.DB, cfg *config.Config, seq *sequence.Generator, orders *OrderService, notifications *NotificationService) *RFQService {
	return &RFQService{
		db:            db,
		cfg:           cfg,
		seq:           seq,
		orders:        orders,
		notifications: notifications,
	}
}

func (s *RFQService) Create(ctx context.Context, buyerID uuid.UUID, req *CreateRFQRequest) (*models.RFQ, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid RFQ request", err)
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		return nil, apperrors.Validation("expiry must be in the future")
	}

	items := make(models.RFQItemList, 0, len(req.Items))
	for i, r := range req.Items {
		if r.Quantity < 1 {
			return nil, apperrors.Validation("item %d quantity must be at least 1", i)
		}
		items = append(items, models.RFQItem{
			ProductID:      r.ProductID,
			Description:    r.Description,
			Specifications: models.SpecMap(r.Specifications),
			Quantity:       r.Quantity,
			Unit:           r.Unit,
			TargetPrice:    r.TargetPrice,
			Attachments:    r.Attachments,
		})
	}

	number, err := s.seq.Next(ctx, s.cfg.Orders.RFQPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RFQ number: %w", err)
	}

	targets := make([]string, 0, len(req.TargetSellerIDs))
	for _, id := range req.TargetSellerIDs {
		targets = append(targets, id.String())
	}

	rfq := &models.RFQ{
		RFQNumber:       number,
		BuyerID:         buyerID,
		Title:           req.Title,
		Items:           items,
		Requirements:    req.Requirements,
		TargetSellerIDs: targets,
		Status:          models.RFQStatusOpen,
		ExpiresAt:       req.ExpiresAt,
	}

	if err := s.db.WithContext(ctx).Create(rfq).Error; err != nil {
		return nil, fmt.Errorf("failed to create RFQ: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"rfq_number": rfq.RFQNumber,
		"buyer_id":   buyerID,
		"items":      len(items),
	}).Info("RFQ created")

	return rfq, nil
}

// Get loads an RFQ with its quotes, applying the lazy-expiry check first:
// a passed deadline forces the expired status on access, never a terminal
// overwrite.
func (s *RFQService) Get(ctx context.Context, id uuid.UUID) (*models.RFQ, error) {
	rfq, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfDue(ctx, rfq); err != nil {
		return nil, err
	}
	return rfq, nil
}

func (s *RFQService) load(ctx context.Context, id uuid.UUID) (*models.RFQ, error) {
	var rfq models.RFQ
	if err := s.db.WithContext(ctx).Preload("Quotes").First(&rfq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("RFQ", id)
		}
		return nil, fmt.Errorf("failed to load RFQ: %w", err)
	}
	return &rfq, nil
}

func (s *RFQService) expireIfDue(ctx context.Context, rfq *models.RFQ) error {
	if !rfq.IsExpired(time.Now()) {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.RFQ{}).
		Where("id = ? AND version = ?", rfq.ID, rfq.Version).
		Updates(map[string]interface{}{
			"status":  models.RFQStatusExpired,
			"version": rfq.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to expire RFQ: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else moved it first; re-read rather than guess.
		fresh, err := s.load(ctx, rfq.ID)
		if err != nil {
			return err
		}
		*rfq = *fresh
		if rfq.IsExpired(time.Now()) {
			return s.expireIfDue(ctx, rfq)
		}
		return nil
	}

	rfq.Status = models.RFQStatusExpired
	rfq.Version++
	s.notifications.NotifyRFQExpired(rfq)
	return nil
}

func (s *RFQService) ListForBuyer(buyerID uuid.UUID, params utils.PaginationParams) ([]models.RFQ, int64, error) {
	return s.list(s.db.Where("buyer_id = ?", buyerID), params)
}

// ListOpenForSeller returns quotable RFQs the seller may respond to: any
// untargeted open request plus those that name the seller explicitly.
func (s *RFQService) ListOpenForSeller(sellerID uuid.UUID, params utils.PaginationParams) ([]models.RFQ, int64, error) {
	query := s.db.
		Where("status IN ?", []models.RFQStatus{
			models.RFQStatusOpen,
			models.RFQStatusPendingReview,
			models.RFQStatusQuoted,
			models.RFQStatusNegotiating,
		}).
		Where("(target_seller_ids IS NULL OR cardinality(target_seller_ids) = 0 OR ? = ANY(target_seller_ids))", sellerID.String())
	return s.list(query, params)
}

func (s *RFQService) ListAll(params utils.PaginationParams) ([]models.RFQ, int64, error) {
	return s.list(s.db, params)
}

func (s *RFQService) list(query *gorm.DB, params utils.PaginationParams) ([]models.RFQ, int64, error) {
	query = query.Model(&models.RFQ{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count RFQs: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "rfq_number", "status", "expires_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var rfqs []models.RFQ
	if err := query.Preload("Quotes").Find(&rfqs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch RFQs: %w", err)
	}
	return rfqs, total, nil
}

// SubmitQuote appends a seller's quote. The declared total must equal the
// sum of line totals; silently-wrong math is rejected, never recomputed on
// the caller's behalf. A resubmission supersedes the seller's earlier
// pending quotes, which stay on file for audit.
func (s *RFQService) SubmitQuote(ctx context.Context, rfqID, sellerID uuid.UUID, req *SubmitQuoteRequest) (*models.Quote, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid quote request", err)
	}

	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	if !rfq.Status.AcceptsQuotes() {
		return nil, apperrors.InvalidState("RFQ %s is %s and no longer accepts quotes", rfq.RFQNumber, rfq.Status)
	}
	if !rfq.IsTargeted(sellerID) {
		return nil, apperrors.Unauthorized("seller %s is not invited to quote on RFQ %s", sellerID, rfq.RFQNumber)
	}

	var sum float64
	lines := make(models.QuoteLineList, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.ItemIndex < 0 || l.ItemIndex >= len(rfq.Items) {
			return nil, apperrors.Validation("quote line references unknown RFQ item %d", l.ItemIndex)
		}
		expected := float64(rfq.Items[l.ItemIndex].Quantity) * l.UnitPrice
		if !pricing.SameAmount(expected, l.LineTotal) {
			return nil, apperrors.Validation("line %d total %.2f does not match quantity x unit price %.2f", l.ItemIndex, l.LineTotal, expected)
		}
		sum += l.LineTotal
		lines = append(lines, models.QuoteLine{
			ItemIndex: l.ItemIndex,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			Notes:     l.Notes,
		})
	}
	if !pricing.SameAmount(sum, req.TotalAmount) {
		return nil, apperrors.Validation("quote total %.2f does not match sum of line totals %.2f", req.TotalAmount, sum)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Orders.DefaultCurrency
	}

	quote := &models.Quote{
		RFQID:         rfq.ID,
		SellerID:      sellerID,
		Lines:         lines,
		TotalAmount:   req.TotalAmount,
		Currency:      currency,
		ValidUntil:    req.ValidUntil,
		DeliveryTerms: req.DeliveryTerms,
		PaymentTerms:  req.PaymentTerms,
		Notes:         req.Notes,
		Status:        models.QuoteStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Supersede this seller's earlier pending quotes; they stay on file.
		if err := tx.Model(&models.Quote{}).
			Where("rfq_id = ? AND seller_id = ? AND status = ?", rfq.ID, sellerID, models.QuoteStatusPending).
			Updates(map[string]interface{}{
				"status":  models.QuoteStatusCounterOffered,
				"version": gorm.Expr("version + 1"),
			}).Error; err != nil {
			return fmt.Errorf("failed to supersede earlier quotes: %w", err)
		}

		if err := tx.Create(quote).Error; err != nil {
			return fmt.Errorf("failed to create quote: %w", err)
		}

		// First quote moves the RFQ to quoted. Compare-and-set on status so
		// two concurrent submissions both append but the transition fires
		// exactly once.
		if err := tx.Model(&models.RFQ{}).
			Where("id = ? AND status = ?", rfq.ID, models.RFQStatusOpen).
			Updates(map[string]interface{}{
				"status":  models.RFQStatusQuoted,
				"version": gorm.Expr("version + 1"),
			}).Error; err != nil {
			return fmt.Errorf("failed to advance RFQ to quoted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"rfq_number":   rfq.RFQNumber,
		"seller_id":    sellerID,
		"total_amount": quote.TotalAmount,
	}).Info("Quote submitted")

	return quote, nil
}

// AcceptQuote closes the negotiation: exactly one quote wins, every sibling
// is rejected, and the accepted quote is materialized into an order. All of
// it happens in one transaction, so the caller observes either both effects
// or neither.
func (s *RFQService) AcceptQuote(ctx context.Context, rfqID, quoteID, actingBuyerID uuid.UUID) (*models.RFQ, *models.Order, error) {
	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, nil, err
	}

	if rfq.BuyerID != actingBuyerID {
		return nil, nil, apperrors.Unauthorized("only the RFQ owner may accept a quote")
	}
	if rfq.Status == models.RFQStatusExpired {
		return nil, nil, apperrors.Expired("RFQ %s has expired", rfq.RFQNumber)
	}
	if !rfq.Status.CanTransition(models.RFQStatusAccepted) {
		return nil, nil, apperrors.InvalidState("RFQ %s is %s and cannot be accepted", rfq.RFQNumber, rfq.Status)
	}

	var quote *models.Quote
	for i := range rfq.Quotes {
		if rfq.Quotes[i].ID == quoteID {
			quote = &rfq.Quotes[i]
			break
		}
	}
	if quote == nil {
		return nil, nil, apperrors.NotFound("quote", quoteID)
	}
	if quote.IsExpired(time.Now()) {
		return nil, nil, apperrors.Expired("quote %s expired at %s", quoteID, quote.ValidUntil.Format(time.RFC3339))
	}

	// Number allocated outside the transaction: no external I/O while the
	// atomic write is in flight.
	orderNumber, err := s.seq.Next(ctx, s.cfg.Orders.OrderPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	var order *models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RFQ{}).
			Where("id = ? AND version = ?", rfq.ID, rfq.Version).
			Updates(map[string]interface{}{
				"status":            models.RFQStatusAccepted,
				"selected_quote_id": quote.ID,
				"version":           rfq.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to accept RFQ: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("RFQ %s was modified concurrently, please retry", rfq.RFQNumber)
		}

		if err := tx.Model(&models.Quote{}).
			Where("id = ?", quote.ID).
			Updates(map[string]interface{}{
				"status":  models.QuoteStatusAccepted,
				"version": gorm.Expr("version + 1"),
			}).Error; err != nil {
			return fmt.Errorf("failed to mark quote accepted: %w", err)
		}

		if err := tx.Model(&models.Quote{}).
			Where("rfq_id = ? AND id <> ?", rfq.ID, quote.ID).
			Updates(map[string]interface{}{
				"status":  models.QuoteStatusRejected,
				"version": gorm.Expr("version + 1"),
			}).Error; err != nil {
			return fmt.Errorf("failed to reject sibling quotes: %w", err)
		}

		order, err = s.orders.CreateFromQuoteTx(tx, orderNumber, rfq, quote)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	rfq.Status = models.RFQStatusAccepted
	selected := quote.ID
	rfq.SelectedQuoteID = &selected
	rfq.Version++
	quote.Status = models.QuoteStatusAccepted

	logrus.WithFields(logrus.Fields{
		"rfq_number":   rfq.RFQNumber,
		"quote_id":     quote.ID,
		"order_number": order.OrderNumber,
	}).Info("Quote accepted")

	s.notifications.NotifyRFQAccepted(rfq, quote, order.OrderNumber)
	s.notifications.NotifyOrderCreated(order)
	return rfq, order, nil
}

// RejectQuotes declines every outstanding quote and closes the RFQ.
func (s *RFQService) RejectQuotes(ctx context.Context, rfqID, actingBuyerID uuid.UUID) (*models.RFQ, error) {
	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.BuyerID != actingBuyerID {
		return nil, apperrors.Unauthorized("only the RFQ owner may reject quotes")
	}
	if !rfq.Status.CanTransition(models.RFQStatusRejected) {
		return nil, apperrors.InvalidState("RFQ %s is %s and cannot be rejected", rfq.RFQNumber, rfq.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.RFQ{}).
			Where("id = ? AND version = ?", rfq.ID, rfq.Version).
			Updates(map[string]interface{}{
				"status":  models.RFQStatusRejected,
				"version": rfq.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reject RFQ: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("RFQ %s was modified concurrently, please retry", rfq.RFQNumber)
		}

		return tx.Model(&models.Quote{}).
			Where("rfq_id = ? AND status = ?", rfq.ID, models.QuoteStatusPending).
			Updates(map[string]interface{}{
				"status":  models.QuoteStatusRejected,
				"version": gorm.Expr("version + 1"),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	rfq.Status = models.RFQStatusRejected
	rfq.Version++
	s.notifications.NotifyRFQRejected(rfq)
	return rfq, nil
}

// Cancel withdraws the RFQ. Legal from any non-terminal state and
// idempotent: a repeat cancel is a no-op success.
func (s *RFQService) Cancel(ctx context.Context, rfqID, actingBuyerID uuid.UUID) (*models.RFQ, error) {
	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.BuyerID != actingBuyerID {
		return nil, apperrors.Unauthorized("only the RFQ owner may cancel it")
	}
	if rfq.Status == models.RFQStatusCancelled {
		return rfq, nil
	}
	if !rfq.Status.CanTransition(models.RFQStatusCancelled) {
		return nil, apperrors.InvalidState("RFQ %s is %s and cannot be cancelled", rfq.RFQNumber, rfq.Status)
	}

	if err := s.transition(ctx, rfq, models.RFQStatusCancelled); err != nil {
		return nil, err
	}
	s.notifications.NotifyRFQCancelled(rfq)
	return rfq, nil
}

// StartReview marks the buyer as actively screening quotes.
func (s *RFQService) StartReview(ctx context.Context, rfqID, actingBuyerID uuid.UUID) (*models.RFQ, error) {
	return s.buyerTransition(ctx, rfqID, actingBuyerID, models.RFQStatusPendingReview)
}

// RequestRevisions asks sellers for counter-offers.
func (s *RFQService) RequestRevisions(ctx context.Context, rfqID, actingBuyerID uuid.UUID) (*models.RFQ, error) {
	return s.buyerTransition(ctx, rfqID, actingBuyerID, models.RFQStatusNegotiating)
}

// MarkReadyForReview returns a negotiating RFQ to the quoted state once a
// fresh quote set is in.
func (s *RFQService) MarkReadyForReview(ctx context.Context, rfqID, actingBuyerID uuid.UUID) (*models.RFQ, error) {
	return s.buyerTransition(ctx, rfqID, actingBuyerID, models.RFQStatusQuoted)
}

func (s *RFQService) buyerTransition(ctx context.Context, rfqID, actingBuyerID uuid.UUID, target models.RFQStatus) (*models.RFQ, error) {
	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.BuyerID != actingBuyerID {
		return nil, apperrors.Unauthorized("only the RFQ owner may update it")
	}
	if !rfq.Status.CanTransition(target) {
		return nil, apperrors.InvalidTransition("RFQ", rfq.Status, target)
	}
	if err := s.transition(ctx, rfq, target); err != nil {
		return nil, err
	}
	return rfq, nil
}

func (s *RFQService) transition(ctx context.Context, rfq *models.RFQ, target models.RFQStatus) error {
	res := s.db.WithContext(ctx).Model(&models.RFQ{}).
		Where("id = ? AND version = ?", rfq.ID, rfq.Version).
		Updates(map[string]interface{}{
			"status":  target,
			"version": rfq.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update RFQ status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("RFQ %s was modified concurrently, please retry", rfq.RFQNumber)
	}
	rfq.Status = target
	rfq.Version++
	return nil
}

// CompareQuotes ranks the current quote set by total for the buyer's
// review screen. Read-only; acceptance remains the buyer's call.
func (s *RFQService) CompareQuotes(ctx context.Context, rfqID, actingBuyerID uuid.UUID) ([]QuoteComparison, error) {
	rfq, err := s.Get(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.BuyerID != actingBuyerID {
		return nil, apperrors.Unauthorized("only the RFQ owner may compare quotes")
	}

	comparisons := make([]QuoteComparison, 0, len(rfq.Quotes))
	for _, q := range rfq.Quotes {
		if q.Status != models.QuoteStatusPending {
			continue
		}
		comparisons = append(comparisons, QuoteComparison{
			QuoteID:       q.ID,
			SellerID:      q.SellerID,
			TotalAmount:   q.TotalAmount,
			ValidUntil:    q.ValidUntil,
			DeliveryTerms: q.DeliveryTerms,
			Status:        q.Status,
		})
	}

	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].TotalAmount < comparisons[j].TotalAmount
	})
	if len(comparisons) > 0 {
		comparisons[0].Lowest = true
	}
	return comparisons, nil
}
