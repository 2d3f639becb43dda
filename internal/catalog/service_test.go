package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	products map[string]Product
	skus     map[string]bool
	failWith error
}

func newMemStore() *memStore {
	return &memStore{products: map[string]Product{}, skus: map[string]bool{}}
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id string) (Product, error) {
	if m.failWith != nil {
		return Product{}, m.failWith
	}
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) Create(_ context.Context, p Product) error {
	if m.failWith != nil {
		return m.failWith
	}
	if m.skus[p.SKU] {
		return ErrDuplicateSKU
	}
	m.skus[p.SKU] = true
	m.products[p.ID] = p
	return nil
}

func (m *memStore) Update(_ context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memStore) SetActive(_ context.Context, id string, active bool) error {
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = active
	m.products[id] = p
	return nil
}

func (m *memStore) AddImage(_ context.Context, im Image) error {
	p, ok := m.products[im.ProductID]
	if !ok {
		return ErrNotFound
	}
	p.Images = append(p.Images, im)
	m.products[p.ID] = p
	return nil
}

func (m *memStore) Lookup(context.Context, []LineRef) (map[LineRef]Priced, error) {
	return map[LineRef]Priced{}, nil
}

func TestCreateAssignsIDs(t *testing.T) {
	s := &Service{Store: newMemStore()}
	p, err := s.Create(context.Background(), Product{
		SKU: "TEA-500", Name: "Rwanda tea 500g", Price: 4500, Stock: 10,
		Variations: []Variation{{SKU: "TEA-500-GREEN", Price: 5000, Stock: 3}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.True(t, p.Active)
	require.Len(t, p.Variations, 1)
	assert.Equal(t, p.ID, p.Variations[0].ProductID)
	assert.NotNil(t, p.Variations[0].Attributes)
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := &Service{Store: newMemStore()}
	_, err := s.Create(context.Background(), Product{SKU: "", Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Create(context.Background(), Product{SKU: "A", Name: "x", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBulkUploadReportsDuplicatesPerRow(t *testing.T) {
	s := &Service{Store: newMemStore()}
	res, err := s.BulkUpload(context.Background(), []Product{
		{SKU: "A", Name: "Coffee", Price: 3000},
		{SKU: "A", Name: "Coffee again", Price: 3000},
		{SKU: "", Name: "No sku"},
		{SKU: "B", Name: "Honey", Price: 2500},
	})
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.NotEmpty(t, res[0].ID)
	assert.Contains(t, res[1].Error, "duplicate sku")
	assert.NotEmpty(t, res[2].Error)
	assert.NotEmpty(t, res[3].ID)
}

func TestBulkUploadAbortsOnStoreFailure(t *testing.T) {
	st := newMemStore()
	st.failWith = errors.New("connection reset")
	s := &Service{Store: st}
	res, err := s.BulkUpload(context.Background(), []Product{{SKU: "A", Name: "x"}})
	assert.Error(t, err)
	assert.Empty(t, res)
}

func TestAddImage(t *testing.T) {
	s := &Service{Store: newMemStore()}
	_, err := s.AddImage(context.Background(), "missing", "https://cdn/x.jpg", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddImage(context.Background(), "missing", " ", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	st := newMemStore()
	st.failWith = errors.New("invalid input syntax for type uuid")
	s := &Service{Store: st}
	ctx := context.Background()

	_, err := s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Update(ctx, Product{ID: "abc", SKU: "A", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetActive(ctx, "abc", false), ErrNotFound)
	_, err = s.AddImage(ctx, "abc", "https://cdn/x.jpg", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLineRefValid(t *testing.T) {
	id := "3f1c6a3e-0b7e-4d5e-9b0a-6f1e2d3c4b5a"
	assert.True(t, LineRef{ProductID: id}.Valid())
	assert.True(t, LineRef{ProductID: id, VariationID: id}.Valid())
	assert.False(t, LineRef{ProductID: "foo"}.Valid())
	assert.False(t, LineRef{ProductID: id, VariationID: "m"}.Valid())

	assert.True(t, LineRef{ProductID: "a"}.Less(LineRef{ProductID: "b"}))
	assert.True(t, LineRef{ProductID: "a"}.Less(LineRef{ProductID: "a", VariationID: "x"}))
	assert.False(t, LineRef{ProductID: "b"}.Less(LineRef{ProductID: "a"}))
}

func TestEffectivePrice(t *testing.T) {
	assert.Equal(t, int64(1000), EffectivePrice(1000, 0))
	assert.Equal(t, int64(1200), EffectivePrice(1000, 1200))
}

func TestCreateNormalizesText(t *testing.T) {
	s := &Service{Store: newMemStore()}
	p, err := s.Create(context.Background(), Product{
		SKU: " CAF-1 ", Name: " Café Maraba ", Category: " Coffee ", Price: 6000,
		Variations: []Variation{{SKU: "CAF-1-G", Attributes: map[string]string{"grind": " fine "}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CAF-1", p.SKU)
	assert.Equal(t, "Café Maraba", p.Name)
	assert.Equal(t, "coffee", p.Category)
	assert.Equal(t, "fine", p.Variations[0].Attributes["grind"])
}
