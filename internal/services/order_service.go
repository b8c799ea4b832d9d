// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
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

// OrderService tracks fulfillment and payment as two independent axes and
// guards the frozen pricing snapshot. All mutations are optimistic
// read-modify-writes; a lost race surfaces as Conflict and the caller
// re-reads and retries.
type OrderService struct {
	db            *gorm.DB
	cfg           *config.Config
	seq           *sequence.Generator
	notifications *NotificationService
}

type OrderItemRequest struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description,omitempty"`
	Variant     string     `json:"variant,omitempty"`
	Quantity    int        `json:"quantity" validate:"required,min=1"`
	Unit        string     `json:"unit,omitempty"`
	UnitPrice   float64    `json:"unit_price" validate:"min=0"`
	Discount    float64    `json:"discount,omitempty" validate:"min=0"`
	Tax         float64    `json:"tax,omitempty" validate:"min=0"`
}

type CreateOrderRequest struct {
	SellerID        uuid.UUID          `json:"seller_id" validate:"required"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	Currency        string             `json:"currency,omitempty" validate:"omitempty,currency"`
	ShippingAddress models.Address     `json:"shipping_address" validate:"required"`
	BillingAddress  *models.Address    `json:"billing_address,omitempty"`
	ShippingMethod  string             `json:"shipping_method,omitempty"`
	ShippingFee     *float64           `json:"shipping_fee,omitempty" validate:"omitempty,min=0"`
	Notes           string             `json:"notes,omitempty"`
}

type ShippingUpdateRequest struct {
	Method            string     `json:"method,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

func NewOrderService(db *gorm.DB, cfg *config.Config, seq *sequence.Generator, notifications *NotificationService) *OrderService {
	return &OrderService{
		db:            db,
		cfg:           cfg,
		seq:           seq,
		notifications: notifications,
	}
}

// CreateFromItems is the single entry point for order creation: both cart
// checkout and RFQ acceptance converge here. The pricing snapshot is
// computed exactly once and never recomputed afterwards.
func (s *OrderService) CreateFromItems(ctx context.Context, buyerID uuid.UUID, req *CreateOrderRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid order request", err)
	}
	if req.ShippingAddress.Line1 == "" {
		return nil, apperrors.Validation("shipping address is required")
	}

	items, err := s.buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	shipping := s.cfg.Orders.ShippingFlatRate
	if req.ShippingFee != nil {
		shipping = *req.ShippingFee
	}

	// Allocate the number before opening the transaction so no external
	// call happens inside the atomic write.
	orderNumber, err := s.seq.Next(ctx, s.cfg.Orders.OrderPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	order := s.assemble(orderNumber, buyerID, req.SellerID, items, shipping, req)

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"buyer_id":     buyerID,
		"total":        order.Pricing.Total,
	}).Info("Order created")

	s.notifications.NotifyOrderCreated(order)
	return order, nil
}

// CreateFromQuoteTx materializes an accepted quote into an order inside the
// caller's transaction, so acceptance and order creation commit or roll
// back together. The order number must be allocated by the caller up front.
func (s *OrderService) CreateFromQuoteTx(tx *gorm.DB, orderNumber string, rfq *models.RFQ, quote *models.Quote) (*models.Order, error) {
	if len(quote.Lines) == 0 {
		return nil, apperrors.Validation("quote %s has no lines", quote.ID)
	}

	items := make(models.OrderItemList, 0, len(quote.Lines))
	lines := make([]pricing.Line, 0, len(quote.Lines))
	for _, ql := range quote.Lines {
		if ql.ItemIndex < 0 || ql.ItemIndex >= len(rfq.Items) {
			return nil, apperrors.Validation("quote line references unknown RFQ item %d", ql.ItemIndex)
		}
		ri := rfq.Items[ql.ItemIndex]
		subtotal := float64(ri.Quantity) * ql.UnitPrice
		// Tax stays unrounded per line; the snapshot total is rounded once.
		tax := subtotal * s.cfg.Orders.TaxRate
		line := pricing.Line{Quantity: ri.Quantity, UnitPrice: ql.UnitPrice, Tax: tax}
		lines = append(lines, line)
		items = append(items, models.OrderItem{
			ProductID:   ri.ProductID,
			Description: ri.Description,
			Quantity:    ri.Quantity,
			Unit:        ri.Unit,
			UnitPrice:   ql.UnitPrice,
			Subtotal:    subtotal,
			Tax:         tax,
			LineTotal:   pricing.LineTotal(line),
		})
	}

	summary := pricing.Compute(lines, s.cfg.Orders.ShippingFlatRate)

	paymentMethod := quote.PaymentTerms
	if paymentMethod == "" {
		paymentMethod = rfq.Requirements.PaymentTerms
	}

	currency := quote.Currency
	if currency == "" {
		currency = s.cfg.Orders.DefaultCurrency
	}

	rfqID := rfq.ID
	quoteID := quote.ID
	order := &models.Order{
		OrderNumber:     orderNumber,
		BuyerID:         rfq.BuyerID,
		SellerID:        quote.SellerID,
		RFQID:           &rfqID,
		QuoteID:         &quoteID,
		Items:           items,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   paymentMethod,
		DeferredPayment: s.cfg.IsDeferredMethod(paymentMethod),
		Pricing: models.PricingSnapshot{
			Subtotal: summary.Subtotal,
			Discount: summary.Discount,
			Tax:      summary.Tax,
			Shipping: summary.Shipping,
			Total:    summary.Total,
			Currency: currency,
		},
		ShippingAddress: models.Address{
			Line1: rfq.Requirements.DeliveryLocation,
		},
	}

	if err := tx.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order from quote: %w", err)
	}

	return order, nil
}

func (s *OrderService) buildItems(reqs []OrderItemRequest) (models.OrderItemList, error) {
	items := make(models.OrderItemList, 0, len(reqs))
	for i, r := range reqs {
		if r.Quantity < 1 {
			return nil, apperrors.Validation("item %d quantity must be at least 1", i)
		}
		if r.UnitPrice < 0 {
			return nil, apperrors.Validation("item %d unit price cannot be negative", i)
		}

		unitPrice := r.UnitPrice
		description := r.Description
		unit := r.Unit

		// Pre-fill from the catalog when a product reference is given and no
		// price was supplied. The looked-up price is baked into the snapshot
		// here; later catalog changes do not reach back into this order.
		if r.ProductID != nil && (unitPrice == 0 || description == "") {
			var product models.Product
			if err := s.db.First(&product, *r.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, apperrors.NotFound("product", *r.ProductID)
				}
				return nil, fmt.Errorf("failed to load product: %w", err)
			}
			if unitPrice == 0 {
				unitPrice = product.Price
			}
			if description == "" {
				description = product.Name
			}
			if unit == "" {
				unit = product.Unit
			}
		}

		subtotal := float64(r.Quantity) * unitPrice
		line := pricing.Line{Quantity: r.Quantity, UnitPrice: unitPrice, Discount: r.Discount, Tax: r.Tax}
		items = append(items, models.OrderItem{
			ProductID:   r.ProductID,
			Description: description,
			Variant:     r.Variant,
			Quantity:    r.Quantity,
			Unit:        unit,
			UnitPrice:   unitPrice,
			Subtotal:    subtotal,
			Discount:    r.Discount,
			Tax:         r.Tax,
			LineTotal:   pricing.LineTotal(line),
		})
	}
	return items, nil
}

func (s *OrderService) assemble(orderNumber string, buyerID, sellerID uuid.UUID, items models.OrderItemList, shipping float64, req *CreateOrderRequest) *models.Order {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, Discount: it.Discount, Tax: it.Tax})
	}
	summary := pricing.Compute(lines, shipping)

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Orders.DefaultCurrency
	}

	billing := req.BillingAddress
	if billing == nil {
		// Billing defaults to shipping.
		addr := req.ShippingAddress
		billing = &addr
	}

	return &models.Order{
		OrderNumber:     orderNumber,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Items:           items,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		DeferredPayment: s.cfg.IsDeferredMethod(req.PaymentMethod),
		Pricing: models.PricingSnapshot{
			Subtotal: summary.Subtotal,
			Discount: summary.Discount,
			Tax:      summary.Tax,
			Shipping: summary.Shipping,
			Total:    summary.Total,
			Currency: currency,
		},
		Shipping:        models.ShippingInfo{Method: req.ShippingMethod},
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Notes:           req.Notes,
	}
}

func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Buyer").Preload("Seller").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (s *OrderService) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("order_number = ?", number).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", number)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (s *OrderService) ListForBuyer(buyerID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	return s.list(s.db.Where("buyer_id = ?", buyerID), params)
}

func (s *OrderService) ListForSeller(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Order, int64, error) {
	return s.list(s.db.Where("seller_id = ?", sellerID), params)
}

func (s *OrderService) list(query *gorm.DB, params utils.PaginationParams) ([]models.Order, int64, error) {
	query = query.Model(&models.Order{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "order_number", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}

// AdvanceFulfillment moves the fulfillment axis one step. Skipping ahead on
// the linear path is rejected; cancellation and refund follow their own
// reachability rules, and everything past confirmed needs a settled payment
// unless the order is on deferred terms.
func (s *OrderService) AdvanceFulfillment(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorID uuid.UUID, actorType models.UserType) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeFulfillment(order, target, actorID, actorType); err != nil {
		return nil, err
	}

	if !order.Status.CanTransition(target) {
		return nil, apperrors.InvalidTransition("order", order.Status, target)
	}

	if target == models.OrderStatusRefunded && order.PaidAt == nil {
		return nil, apperrors.InvalidState("order %s cannot be refunded before payment", order.OrderNumber)
	}

	if order.RequiresPaymentBefore(target) {
		return nil, apperrors.InvalidState("order %s cannot move to %s while payment is %s", order.OrderNumber, target, order.PaymentStatus)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": target}
	switch target {
	case models.OrderStatusConfirmed:
		updates["confirmed_at"] = &now
	case models.OrderStatusShipped:
		updates["shipped_at"] = &now
	case models.OrderStatusDelivered:
		updates["delivered_at"] = &now
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = &now
	case models.OrderStatusRefunded:
		updates["refunded_at"] = &now
	}

	if err := s.applyVersioned(ctx, order, updates); err != nil {
		return nil, err
	}

	order.Status = target
	logrus.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"status":       target,
		"actor_id":     actorID,
	}).Info("Order fulfillment advanced")

	if target.IsTerminal() {
		s.notifications.NotifyOrderTerminal(order)
	}
	return s.Get(ctx, orderID)
}

func (s *OrderService) authorizeFulfillment(order *models.Order, target models.OrderStatus, actorID uuid.UUID, actorType models.UserType) error {
	if actorType == models.UserTypeAdmin {
		return nil
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return apperrors.Unauthorized("actor %s is not a party to order %s", actorID, order.OrderNumber)
	}

	switch target {
	case models.OrderStatusConfirmed, models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusRefunded:
		if actorID != order.SellerID {
			return apperrors.Unauthorized("only the seller may move order %s to %s", order.OrderNumber, target)
		}
	}
	return nil
}

// RecordPaymentEvent applies a payment-gateway outcome to the payment axis.
// Independent of fulfillment transitions; arrives asynchronously from
// webhook callbacks.
func (s *OrderService) RecordPaymentEvent(ctx context.Context, orderID uuid.UUID, target models.PaymentStatus, transactionRef string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.PaymentStatus.CanTransition(target) {
		return nil, apperrors.InvalidTransition("payment", order.PaymentStatus, target)
	}

	updates := map[string]interface{}{"payment_status": target}
	if transactionRef != "" {
		updates["transaction_ref"] = transactionRef
	}
	if target == models.PaymentStatusPaid {
		now := time.Now()
		updates["paid_at"] = &now
	}

	if err := s.applyVersioned(ctx, order, updates); err != nil {
		return nil, err
	}

	order.PaymentStatus = target
	order.TransactionRef = transactionRef
	logrus.WithFields(logrus.Fields{
		"order_number":   order.OrderNumber,
		"payment_status": target,
	}).Info("Payment event recorded")

	s.notifications.NotifyPaymentEvent(order)
	return s.Get(ctx, orderID)
}

// UpdateShipping mutates the shipping sub-record. Only legal after
// confirmation and before the order reaches a resting state.
func (s *OrderService) UpdateShipping(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, actorType models.UserType, req *ShippingUpdateRequest) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actorType != models.UserTypeAdmin && actorID != order.SellerID {
		return nil, apperrors.Unauthorized("only the seller may update shipping on order %s", order.OrderNumber)
	}

	if !order.Status.ShippingMutable() {
		return nil, apperrors.InvalidState("shipping details are locked while order %s is %s", order.OrderNumber, order.Status)
	}

	info := order.Shipping
	if req.Method != "" {
		info.Method = req.Method
	}
	if req.Carrier != "" {
		info.Carrier = req.Carrier
	}
	if req.TrackingNumber != "" {
		info.TrackingNumber = req.TrackingNumber
	}
	if req.EstimatedDelivery != nil {
		info.EstimatedDelivery = req.EstimatedDelivery
	}

	if err := s.applyVersioned(ctx, order, map[string]interface{}{"shipping": info}); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// Cancel is idempotent: cancelling an already-cancelled order succeeds
// without touching it, because flaky callers retry.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID, actorType models.UserType) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusCancelled {
		return order, nil
	}

	return s.AdvanceFulfillment(ctx, orderID, models.OrderStatusCancelled, actorID, actorType)
}

// applyVersioned performs the single atomic read-modify-write: the update
// only lands if the row version is unchanged since the read.
func (s *OrderService) applyVersioned(ctx context.Context, order *models.Order, updates map[string]interface{}) error {
	updates["version"] = order.Version + 1

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("order %s was modified concurrently, please retry", order.OrderNumber)
	}

	order.Version++
	return nil
}
