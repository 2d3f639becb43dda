package orders

import (
	"time"

	"github.com/kigalimart/storefront/internal/catalog"
)

type Order struct {
	ID              string        `json:"id"`
	Number          string        `json:"number"`
	ExternalID      string        `json:"external_id"`
	UserID          string        `json:"user_id"`
	Status          Status        `json:"status"`
	Subtotal        int64         `json:"subtotal"`
	DeliveryFee     int64         `json:"delivery_fee"`
	Total           int64         `json:"total"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentProvider string        `json:"payment_provider,omitempty"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	RefundStatus    string        `json:"refund_status"`
	RefundAmount    int64         `json:"refund_amount"`
	Address         string        `json:"address"`
	Phone           string        `json:"phone"`
	Notes           string        `json:"notes,omitempty"`
	Items           []Item        `json:"items,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type Item struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"order_id"`
	ProductID   string      `json:"product_id"`
	VariationID string      `json:"variation_id,omitempty"`
	Name        string      `json:"name"`
	Qty         int         `json:"qty"`
	UnitPrice   int64       `json:"unit_price"`
	LineTotal   int64       `json:"line_total"`
	RefundState RefundState `json:"refund_state"`
	// RefundQty counts units already refunded; RequestedQty is the open
	// request, booked into RefundQty on completion.
	RefundQty    int    `json:"refund_qty"`
	RequestedQty int    `json:"refund_requested_qty"`
	RefundReason string `json:"refund_reason,omitempty"`
}

// Refundable is the number of units not yet refunded.
func (it Item) Refundable() int { return it.Qty - it.RefundQty }

func (it Item) Ref() catalog.LineRef {
	return catalog.LineRef{ProductID: it.ProductID, VariationID: it.VariationID}
}

type LineInput struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Qty         int    `json:"qty"`
}

func (l LineInput) Ref() catalog.LineRef {
	return catalog.LineRef{ProductID: l.ProductID, VariationID: l.VariationID}
}

type PlaceInput struct {
	ExternalID string      `json:"external_id"`
	Items      []LineInput `json:"items"`
	Address    string      `json:"address"`
	Phone      string      `json:"phone"`
	Notes      string      `json:"notes"`
}

type ListFilter struct {
	UserID string
	Status Status
	Limit  int
	Offset int
}

// StockRow is the locked catalog state used to price a line.
type StockRow struct {
	Name   string
	Price  int64
	Stock  int
	Active bool
}

type StockShortage struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id,omitempty"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
}

// CachedStatus is what the status cache holds per order.
type CachedStatus struct {
	UserID        string        `json:"user_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	RefundStatus  string        `json:"refund_status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
