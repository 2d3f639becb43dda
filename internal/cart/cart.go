// Package cart keeps per-user shopping carts in Redis and prices them
// against the live catalog.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kigalimart/storefront/internal/catalog"
)

var (
	ErrInvalidQty        = errors.New("quantity must be positive")
	ErrUnavailable       = errors.New("product unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmpty             = errors.New("cart is empty")
)

type Store interface {
	Lines(ctx context.Context, userID string) (map[catalog.LineRef]int, error)
	Add(ctx context.Context, userID string, ref catalog.LineRef, qty int) error
	Set(ctx context.Context, userID string, ref catalog.LineRef, qty int) error
	Remove(ctx context.Context, userID string, ref catalog.LineRef) error
	Clear(ctx context.Context, userID string) error
}

type Pricer interface {
	Lookup(ctx context.Context, refs []catalog.LineRef) (map[catalog.LineRef]catalog.Priced, error)
}

// Fees are whole francs. A zero FreeThreshold disables free delivery.
type Fees struct {
	Delivery      int64
	FreeThreshold int64
}

func (f Fees) For(subtotal int64) int64 {
	if subtotal == 0 {
		return 0
	}
	if f.FreeThreshold > 0 && subtotal >= f.FreeThreshold {
		return 0
	}
	return f.Delivery
}

type Line struct {
	catalog.LineRef
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Qty       int    `json:"qty"`
	LineTotal int64  `json:"line_total"`
	InStock   bool   `json:"in_stock"`
}

type Cart struct {
	UserID      string            `json:"user_id"`
	Lines       []Line            `json:"lines"`
	Unavailable []catalog.LineRef `json:"unavailable,omitempty"`
	Subtotal    int64             `json:"subtotal"`
	DeliveryFee int64             `json:"delivery_fee"`
	Total       int64             `json:"total"`
}

// Totals fills line totals, subtotal, delivery fee and total.
func Totals(c *Cart, fees Fees) {
	c.Subtotal = 0
	for i := range c.Lines {
		c.Lines[i].LineTotal = c.Lines[i].UnitPrice * int64(c.Lines[i].Qty)
		c.Subtotal += c.Lines[i].LineTotal
	}
	c.DeliveryFee = fees.For(c.Subtotal)
	c.Total = c.Subtotal + c.DeliveryFee
}

type Service struct {
	Store  Store
	Pricer Pricer
	Fees   Fees
}

func (s *Service) priced(ctx context.Context, ref catalog.LineRef) (catalog.Priced, error) {
	m, err := s.Pricer.Lookup(ctx, []catalog.LineRef{ref})
	if err != nil {
		return catalog.Priced{}, err
	}
	p, ok := m[ref]
	if !ok || !p.Active {
		return catalog.Priced{}, ErrUnavailable
	}
	return p, nil
}

func (s *Service) Add(ctx context.Context, userID string, ref catalog.LineRef, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, ErrInvalidQty
	}
	p, err := s.priced(ctx, ref)
	if err != nil {
		return Cart{}, err
	}
	lines, err := s.Store.Lines(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if lines[ref]+qty > p.Stock {
		return Cart{}, fmt.Errorf("%w: %d available", ErrInsufficientStock, p.Stock)
	}
	if err := s.Store.Add(ctx, userID, ref, qty); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

// SetQty replaces the quantity; zero removes the line.
func (s *Service) SetQty(ctx context.Context, userID string, ref catalog.LineRef, qty int) (Cart, error) {
	if qty < 0 {
		return Cart{}, ErrInvalidQty
	}
	if qty == 0 {
		return s.Remove(ctx, userID, ref)
	}
	p, err := s.priced(ctx, ref)
	if err != nil {
		return Cart{}, err
	}
	if qty > p.Stock {
		return Cart{}, fmt.Errorf("%w: %d available", ErrInsufficientStock, p.Stock)
	}
	if err := s.Store.Set(ctx, userID, ref, qty); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID string, ref catalog.LineRef) (Cart, error) {
	if err := s.Store.Remove(ctx, userID, ref); err != nil {
		return Cart{}, err
	}
	return s.View(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Store.Clear(ctx, userID)
}

// View prices the cart with current catalog data. Lines whose product
// disappeared or was deactivated are listed under Unavailable.
func (s *Service) View(ctx context.Context, userID string) (Cart, error) {
	qtys, err := s.Store.Lines(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	c := Cart{UserID: userID, Lines: []Line{}}
	if len(qtys) == 0 {
		return c, nil
	}
	refs := make([]catalog.LineRef, 0, len(qtys))
	for ref := range qtys {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ProductID != refs[j].ProductID {
			return refs[i].ProductID < refs[j].ProductID
		}
		return refs[i].VariationID < refs[j].VariationID
	})
	prices, err := s.Pricer.Lookup(ctx, refs)
	if err != nil {
		return Cart{}, err
	}
	for _, ref := range refs {
		p, ok := prices[ref]
		if !ok || !p.Active {
			c.Unavailable = append(c.Unavailable, ref)
			continue
		}
		q := qtys[ref]
		c.Lines = append(c.Lines, Line{LineRef: ref, Name: p.Name, UnitPrice: p.Price, Qty: q, InStock: q <= p.Stock})
	}
	Totals(&c, s.Fees)
	return c, nil
}
