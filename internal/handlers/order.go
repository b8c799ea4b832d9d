// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/services"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// POST /orders
// Direct checkout without a preceding RFQ round.
func (h *OrderHandler) Create(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.orderService.CreateFromItems(c.Request.Context(), buyerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"order": order})
}

// GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), orderID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	if actorType != models.UserTypeAdmin && order.BuyerID != actorID && order.SellerID != actorID {
		utils.ForbiddenResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	var (
		orders []models.Order
		total  int64
		err    error
	)
	if actorType == models.UserTypeSeller {
		orders, total, err = h.orderService.ListForSeller(actorID, params)
	} else {
		orders, total, err = h.orderService.ListForBuyer(actorID, params)
	}
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params))
}

// PUT /orders/:id/status
func (h *OrderHandler) AdvanceStatus(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	order, err := h.orderService.AdvanceFulfillment(c.Request.Context(), orderID, req.Status, actorID, actorType)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// PUT /orders/:id/shipping
func (h *OrderHandler) UpdateShipping(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.ShippingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	order, err := h.orderService.UpdateShipping(c.Request.Context(), orderID, actorID, actorType, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), orderID, actorID, actorType)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}
