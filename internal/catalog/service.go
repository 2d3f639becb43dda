package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrDuplicateSKU = errors.New("duplicate sku")
	ErrInvalidInput = errors.New("invalid product")
)

type Store interface {
	List(ctx context.Context, f ListFilter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	SetActive(ctx context.Context, id string, active bool) error
	AddImage(ctx context.Context, im Image) error
	Lookup(ctx context.Context, refs []LineRef) (map[LineRef]Priced, error)
}

type Service struct {
	Store Store
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Product, error) {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 24
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Store.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if uuid.Validate(id) != nil {
		return Product{}, ErrNotFound
	}
	return s.Store.Get(ctx, id)
}

// normalize trims free text and puts it in NFC so that visually equal
// names compare and search equal.
func normalize(p *Product) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = norm.NFC.String(strings.TrimSpace(p.Name))
	p.Description = norm.NFC.String(strings.TrimSpace(p.Description))
	p.Category = norm.NFC.String(strings.ToLower(strings.TrimSpace(p.Category)))
	for i := range p.Variations {
		p.Variations[i].SKU = strings.TrimSpace(p.Variations[i].SKU)
		for k, v := range p.Variations[i].Attributes {
			p.Variations[i].Attributes[k] = norm.NFC.String(strings.TrimSpace(v))
		}
	}
}

func validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: sku and name are required", ErrInvalidInput)
	}
	if p.Price < 0 || p.Stock < 0 {
		return fmt.Errorf("%w: price and stock must not be negative", ErrInvalidInput)
	}
	for _, v := range p.Variations {
		if strings.TrimSpace(v.SKU) == "" || v.Price < 0 || v.Stock < 0 {
			return fmt.Errorf("%w: variation %q", ErrInvalidInput, v.SKU)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	normalize(&p)
	if err := validate(p); err != nil {
		return Product{}, err
	}
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.Active = true
	p.CreatedAt, p.UpdatedAt = now, now
	for i := range p.Variations {
		p.Variations[i].ID = uuid.NewString()
		p.Variations[i].ProductID = p.ID
		if p.Variations[i].Attributes == nil {
			p.Variations[i].Attributes = map[string]string{}
		}
	}
	for i := range p.Images {
		p.Images[i].ID = uuid.NewString()
		p.Images[i].ProductID = p.ID
	}
	if err := s.Store.Create(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, p Product) (Product, error) {
	normalize(&p)
	if err := validate(p); err != nil {
		return Product{}, err
	}
	if uuid.Validate(p.ID) != nil {
		return Product{}, ErrNotFound
	}
	if err := s.Store.Update(ctx, p); err != nil {
		return Product{}, err
	}
	return s.Store.Get(ctx, p.ID)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	return s.Store.SetActive(ctx, id, active)
}

func (s *Service) AddImage(ctx context.Context, productID, url string, position int) (Image, error) {
	if strings.TrimSpace(url) == "" {
		return Image{}, fmt.Errorf("%w: image url is required", ErrInvalidInput)
	}
	if uuid.Validate(productID) != nil {
		return Image{}, ErrNotFound
	}
	im := Image{ID: uuid.NewString(), ProductID: productID, URL: url, Position: position}
	if err := s.Store.AddImage(ctx, im); err != nil {
		return Image{}, err
	}
	return im, nil
}

type BulkResult struct {
	Row   int    `json:"row"`
	SKU   string `json:"sku"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// BulkUpload creates each row independently. Invalid or duplicate rows are
// reported and skipped; any other store error aborts the batch.
func (s *Service) BulkUpload(ctx context.Context, rows []Product) ([]BulkResult, error) {
	out := make([]BulkResult, 0, len(rows))
	for i, p := range rows {
		res := BulkResult{Row: i + 1, SKU: p.SKU}
		created, err := s.Create(ctx, p)
		switch {
		case err == nil:
			res.ID = created.ID
		case errors.Is(err, ErrDuplicateSKU), errors.Is(err, ErrInvalidInput):
			res.Error = err.Error()
		default:
			return out, fmt.Errorf("bulk upload row %d: %w", i+1, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Service) Lookup(ctx context.Context, refs []LineRef) (map[LineRef]Priced, error) {
	return s.Store.Lookup(ctx, refs)
}
