// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/marketbridge/wholesale-backend/internal/services"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// GET /products
func (h *ProductHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	products, total, err := h.productService.List(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params))
}

// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(productID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}
