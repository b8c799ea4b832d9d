// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product is the catalog entry the quote-and-fulfillment core consumes as
// an external reference: id plus current display price, used to pre-fill
// RFQ and order lines. A frozen order snapshot is never re-read from here.
type Product struct {
	BaseModel
	SellerID       uuid.UUID      `json:"seller_id" gorm:"type:uuid;not null;index"`
	Name           string         `json:"name" gorm:"size:255;not null"`
	Description    string         `json:"description,omitempty" gorm:"type:text"`
	Category       string         `json:"category,omitempty" gorm:"size:100;index"`
	Unit           string         `json:"unit,omitempty" gorm:"size:20"`
	Price          float64        `json:"price" gorm:"type:decimal(12,2);not null"`
	Currency       string         `json:"currency" gorm:"size:3;default:'USD'"`
	MinOrderQty    int            `json:"min_order_qty" gorm:"default:1"`
	Specifications SpecMap        `json:"specifications,omitempty" gorm:"type:jsonb"`
	Images         pq.StringArray `json:"images,omitempty" gorm:"type:text[]"`
	Status         ProductStatus  `json:"status" gorm:"type:varchar(20);default:'draft';index"`

	// Relationships
	Seller User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}
