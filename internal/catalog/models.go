package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          string      `json:"id"`
	SKU         string      `json:"sku"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Price       int64       `json:"price"` // RWF
	Stock       int         `json:"stock"`
	Active      bool        `json:"active"`
	Variations  []Variation `json:"variations,omitempty"`
	Images      []Image     `json:"images,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Variation struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes"`
	Price      int64             `json:"price"` // 0 = product price
	Stock      int               `json:"stock"`
}

type Image struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
	Position  int    `json:"position"`
}

type ListFilter struct {
	Category   string
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// LineRef identifies a purchasable unit: a product or one of its variations.
type LineRef struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
}

// Valid reports whether the ref can name a catalog row at all.
func (r LineRef) Valid() bool {
	if uuid.Validate(r.ProductID) != nil {
		return false
	}
	return r.VariationID == "" || uuid.Validate(r.VariationID) == nil
}

// Less orders refs so that row locks are always taken in the same order.
func (r LineRef) Less(o LineRef) bool {
	if r.ProductID != o.ProductID {
		return r.ProductID < o.ProductID
	}
	return r.VariationID < o.VariationID
}

// Priced is the current sale data of a LineRef.
type Priced struct {
	LineRef
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Stock  int    `json:"stock"`
	Active bool   `json:"active"`
}

// EffectivePrice returns the variation price when set, else the product price.
func EffectivePrice(productPrice, variationPrice int64) int64 {
	if variationPrice > 0 {
		return variationPrice
	}
	return productPrice
}
