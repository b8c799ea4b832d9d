// internal/models/rfq.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RFQItem is a single requested line within an RFQ. ProductID is optional:
// a line may be a free-text ask with no catalog reference.
type RFQItem struct {
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Description    string     `json:"description"`
	Specifications SpecMap    `json:"specifications,omitempty"`
	Quantity       int        `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	TargetPrice    *float64   `json:"target_price,omitempty"`
	Attachments    []string   `json:"attachments,omitempty"`
}

type RFQItemList []RFQItem

func (l RFQItemList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *RFQItemList) Scan(value interface{}) error {
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

// RFQRequirements carries the buyer's delivery and commercial expectations.
// Advisory only: presence is validated, contents are not machine-checked.
type RFQRequirements struct {
	DeliveryDate     *time.Time `json:"delivery_date,omitempty"`
	DeliveryLocation string     `json:"delivery_location,omitempty"`
	PaymentTerms     string     `json:"payment_terms,omitempty"`
	QualityStandards string     `json:"quality_standards,omitempty"`
	Certifications   []string   `json:"certifications,omitempty"`
}

func (r RFQRequirements) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RFQRequirements) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, r)
}

type RFQ struct {
	BaseModel
	RFQNumber       string          `json:"rfq_number" gorm:"size:40;uniqueIndex;not null"`
	BuyerID         uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	Title           string          `json:"title" gorm:"size:255"`
	Items           RFQItemList     `json:"items" gorm:"type:jsonb;not null"`
	Requirements    RFQRequirements `json:"requirements" gorm:"type:jsonb"`
	TargetSellerIDs pq.StringArray  `json:"target_seller_ids,omitempty" gorm:"type:text[]"`
	Status          RFQStatus       `json:"status" gorm:"type:varchar(20);default:'open';index"`
	SelectedQuoteID *uuid.UUID      `json:"selected_quote_id,omitempty" gorm:"type:uuid"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Version         int             `json:"version" gorm:"not null;default:1"`

	// Relationships
	Buyer  User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Quotes []Quote `json:"quotes,omitempty" gorm:"foreignKey:RFQID"`
}

// rfqNext is the full transition graph for the negotiation lifecycle.
// Terminal states have no successors and are never overwritten, not
// even by lazy expiry.
var rfqNext = map[RFQStatus]map[RFQStatus]bool{
	RFQStatusOpen: {
		RFQStatusPendingReview: true,
		RFQStatusQuoted:        true,
		RFQStatusCancelled:     true,
		RFQStatusExpired:       true,
	},
	RFQStatusPendingReview: {
		RFQStatusQuoted:      true,
		RFQStatusNegotiating: true,
		RFQStatusAccepted:    true,
		RFQStatusRejected:    true,
		RFQStatusCancelled:   true,
		RFQStatusExpired:     true,
	},
	RFQStatusQuoted: {
		RFQStatusPendingReview: true,
		RFQStatusNegotiating:   true,
		RFQStatusAccepted:      true,
		RFQStatusRejected:      true,
		RFQStatusCancelled:     true,
		RFQStatusExpired:       true,
	},
	RFQStatusNegotiating: {
		RFQStatusQuoted:    true,
		RFQStatusAccepted:  true,
		RFQStatusRejected:  true,
		RFQStatusCancelled: true,
		RFQStatusExpired:   true,
	},
	RFQStatusAccepted:  {},
	RFQStatusRejected:  {},
	RFQStatusExpired:   {},
	RFQStatusCancelled: {},
}

// quotableStates are the states in which sellers may submit quotes.
var quotableStates = map[RFQStatus]bool{
	RFQStatusOpen:          true,
	RFQStatusPendingReview: true,
	RFQStatusQuoted:        true,
	RFQStatusNegotiating:   true,
}

func (s RFQStatus) CanTransition(to RFQStatus) bool {
	return rfqNext[s][to]
}

func (s RFQStatus) IsTerminal() bool {
	return len(rfqNext[s]) == 0
}

func (s RFQStatus) AcceptsQuotes() bool {
	return quotableStates[s]
}

// IsExpired reports whether the RFQ's deadline has passed. Terminal states
// never expire; a missing deadline means the RFQ stays open indefinitely.
func (r *RFQ) IsExpired(now time.Time) bool {
	if r.Status.IsTerminal() {
		return false
	}
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// IsTargeted reports whether the seller is allowed to quote. An empty
// allow-list opens the RFQ to any seller.
func (r *RFQ) IsTargeted(sellerID uuid.UUID) bool {
	if len(r.TargetSellerIDs) == 0 {
		return true
	}
	id := sellerID.String()
	for _, s := range r.TargetSellerIDs {
		if s == id {
			return true
		}
	}
	return false
}
