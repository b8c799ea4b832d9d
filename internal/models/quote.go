// internal/models/quote.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuoteLine prices one RFQ line item, referenced by its index within the
// parent RFQ's item list.
type QuoteLine struct {
	ItemIndex int     `json:"item_index"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Notes     string  `json:"notes,omitempty"`
}

type QuoteLineList []QuoteLine

func (l QuoteLineList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *QuoteLineList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Quote is a seller's priced response to an RFQ. Quotes live in their own
// table referencing the parent by id, so each carries its own version for
// optimistic concurrency and the RFQ row never grows unboundedly.
type Quote struct {
	BaseModel
	RFQID         uuid.UUID     `json:"rfq_id" gorm:"type:uuid;not null;index"`
	SellerID      uuid.UUID     `json:"seller_id" gorm:"type:uuid;not null;index"`
	Lines         QuoteLineList `json:"lines" gorm:"type:jsonb;not null"`
	TotalAmount   float64       `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Currency      string        `json:"currency" gorm:"size:3;default:'USD'"`
	ValidUntil    *time.Time    `json:"valid_until,omitempty"`
	DeliveryTerms string        `json:"delivery_terms,omitempty" gorm:"type:text"`
	PaymentTerms  string        `json:"payment_terms,omitempty" gorm:"size:255"`
	Notes         string        `json:"notes,omitempty" gorm:"type:text"`
	Status        QuoteStatus   `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Version       int           `json:"version" gorm:"not null;default:1"`

	// Relationships
	Seller User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// IsExpired reports whether the quote's own validity window has closed.
// A quote can expire before its parent RFQ does; this is checked at
// accept-time, not at submit-time.
func (q *Quote) IsExpired(now time.Time) bool {
	return q.ValidUntil != nil && q.ValidUntil.Before(now)
}
