package orders

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/catalog"
)

// ShortageError lists every line that could not be covered by stock.
type ShortageError struct {
	Details []StockShortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, fmt.Sprintf("%s need %d have %d", d.ProductID, d.Required, d.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }

// MergeLines folds duplicate refs together and rejects empty or
// non-positive lines.
func MergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidInput)
	}
	idx := map[catalog.LineRef]int{}
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, fmt.Errorf("%w: missing product_id", ErrInvalidInput)
		}
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: invalid qty for product %s", ErrInvalidInput, l.ProductID)
		}
		if i, ok := idx[l.Ref()]; ok {
			out[i].Qty += l.Qty
			continue
		}
		idx[l.Ref()] = len(out)
		out = append(out, l)
	}
	return out, nil
}

// PriceLines builds order items from catalog rows (never client prices)
// and returns the subtotal. Missing or inactive products yield
// ErrUnavailable; stock gaps yield a *ShortageError.
func PriceLines(orderID string, lines []LineInput, rows map[catalog.LineRef]StockRow) ([]Item, int64, error) {
	items := make([]Item, 0, len(lines))
	var subtotal int64
	var short []StockShortage
	for _, l := range lines {
		row, ok := rows[l.Ref()]
		if !ok || !row.Active {
			return nil, 0, fmt.Errorf("%w: %s", ErrUnavailable, l.ProductID)
		}
		if row.Stock < l.Qty {
			short = append(short, StockShortage{ProductID: l.ProductID, VariationID: l.VariationID, Required: l.Qty, Available: row.Stock})
			continue
		}
		it := Item{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   l.ProductID,
			VariationID: l.VariationID,
			Name:        row.Name,
			Qty:         l.Qty,
			UnitPrice:   row.Price,
			LineTotal:   row.Price * int64(l.Qty),
			RefundState: RefundNone,
		}
		subtotal += it.LineTotal
		items = append(items, it)
	}
	if len(short) > 0 {
		return nil, 0, &ShortageError{Details: short}
	}
	return items, subtotal, nil
}
