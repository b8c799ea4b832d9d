// internal/handlers/rfq.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/services"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

type RFQHandler struct {
	rfqService     *services.RFQService
	storageService *services.StorageService
}

func NewRFQHandler(rfqService *services.RFQService, storageService *services.StorageService) *RFQHandler {
	return &RFQHandler{
		rfqService:     rfqService,
		storageService: storageService,
	}
}

// POST /rfqs
func (h *RFQHandler) Create(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.CreateRFQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	rfq, err := h.rfqService.Create(c.Request.Context(), buyerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"rfq": rfq})
}

// GET /rfqs/:id
func (h *RFQHandler) Get(c *gin.Context) {
	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.Get(c.Request.Context(), rfqID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// GET /rfqs
// Buyers see their own requests, sellers see the open ones addressed to
// them, admins see everything.
func (h *RFQHandler) List(c *gin.Context) {
	actorID, actorType, ok := currentActor(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	var (
		rfqs  []models.RFQ
		total int64
		err   error
	)
	switch actorType {
	case models.UserTypeSeller:
		rfqs, total, err = h.rfqService.ListOpenForSeller(actorID, params)
	case models.UserTypeAdmin:
		rfqs, total, err = h.rfqService.ListAll(params)
	default:
		rfqs, total, err = h.rfqService.ListForBuyer(actorID, params)
	}
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(rfqs, total, params))
}

// POST /rfqs/:id/quotes
func (h *RFQHandler) SubmitQuote(c *gin.Context) {
	sellerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	quote, err := h.rfqService.SubmitQuote(c.Request.Context(), rfqID, sellerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"quote": quote})
}

// POST /rfqs/:id/quotes/:quote_id/accept
func (h *RFQHandler) AcceptQuote(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quoteID, ok := pathUUID(c, "quote_id")
	if !ok {
		return
	}

	rfq, order, err := h.rfqService.AcceptQuote(c.Request.Context(), rfqID, quoteID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"rfq":   rfq,
		"order": order,
	})
}

// POST /rfqs/:id/reject
func (h *RFQHandler) RejectQuotes(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.RejectQuotes(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// POST /rfqs/:id/cancel
func (h *RFQHandler) Cancel(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.Cancel(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// POST /rfqs/:id/review
func (h *RFQHandler) StartReview(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.StartReview(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// POST /rfqs/:id/request-revisions
func (h *RFQHandler) RequestRevisions(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.RequestRevisions(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// POST /rfqs/:id/ready-for-review
func (h *RFQHandler) MarkReadyForReview(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	rfq, err := h.rfqService.MarkReadyForReview(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rfq": rfq})
}

// GET /rfqs/:id/comparison
func (h *RFQHandler) CompareQuotes(c *gin.Context) {
	buyerID, _, ok := currentActor(c)
	if !ok {
		return
	}

	rfqID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	comparison, err := h.rfqService.CompareQuotes(c.Request.Context(), rfqID, buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"quotes": comparison})
}

// POST /rfqs/attachments
func (h *RFQHandler) UploadAttachment(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadAttachment(file, header)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"attachment": result})
}
