package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kigalimart/storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, sku, name, description, category, price, stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Product, error) {
	search := ""
	if f.Search != "" {
		search = "%" + strings.ToLower(f.Search) + "%"
	}
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+` FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR lower(name) LIKE $2 OR lower(sku) LIKE $2)
		  AND (NOT $3 OR active)
		ORDER BY name LIMIT $4 OFFSET $5`, f.Category, search, f.ActiveOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if err != nil {
		return p, err
	}

	rows, err := r.DB.Query(ctx, `SELECT id, product_id, sku, attributes, price, stock
		FROM product_variations WHERE product_id=$1 ORDER BY sku`, id)
	if err != nil {
		return p, err
	}
	for rows.Next() {
		var v Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Attributes, &v.Price, &v.Stock); err != nil {
			rows.Close()
			return p, err
		}
		p.Variations = append(p.Variations, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return p, err
	}

	rows, err = r.DB.Query(ctx, `SELECT id, product_id, url, position
		FROM product_images WHERE product_id=$1 ORDER BY position`, id)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var im Image
		if err := rows.Scan(&im.ID, &im.ProductID, &im.URL, &im.Position); err != nil {
			return p, err
		}
		p.Images = append(p.Images, im)
	}
	return p, rows.Err()
}

// Create inserts the product with its variations and images in one transaction.
func (r *Repo) Create(ctx context.Context, p Product) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO products(id, sku, name, description, category, price, stock, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Stock, p.Active); err != nil {
		return mapWriteErr(err)
	}
	for _, v := range p.Variations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_variations(id, product_id, sku, attributes, price, stock)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			v.ID, p.ID, v.SKU, v.Attributes, v.Price, v.Stock); err != nil {
			return mapWriteErr(err)
		}
	}
	for _, im := range p.Images {
		if _, err := tx.Exec(ctx, `INSERT INTO product_images(id, product_id, url, position) VALUES ($1,$2,$3,$4)`,
			im.ID, p.ID, im.URL, im.Position); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Update(ctx context.Context, p Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET sku=$2, name=$3, description=$4, category=$5, price=$6, stock=$7, updated_at=now()
		WHERE id=$1`, p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price, p.Stock)
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) AddImage(ctx context.Context, im Image) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO product_images(id, product_id, url, position) VALUES ($1,$2,$3,$4)`,
		im.ID, im.ProductID, im.URL, im.Position)
	if postgres.IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

// Lookup prices the given refs from the current catalog. Missing refs are
// absent from the result.
func (r *Repo) Lookup(ctx context.Context, refs []LineRef) (map[LineRef]Priced, error) {
	out := make(map[LineRef]Priced, len(refs))
	for _, ref := range refs {
		if !ref.Valid() {
			continue
		}
		var p Priced
		p.LineRef = ref
		var err error
		if ref.VariationID == "" {
			err = r.DB.QueryRow(ctx, `SELECT name, price, stock, active FROM products WHERE id=$1`, ref.ProductID).
				Scan(&p.Name, &p.Price, &p.Stock, &p.Active)
		} else {
			var base, vprice int64
			var sku string
			err = r.DB.QueryRow(ctx, `
				SELECT p.name, v.sku, p.price, v.price, v.stock, p.active
				FROM product_variations v JOIN products p ON p.id = v.product_id
				WHERE v.id=$1 AND v.product_id=$2`, ref.VariationID, ref.ProductID).
				Scan(&p.Name, &sku, &base, &vprice, &p.Stock, &p.Active)
			p.Price = EffectivePrice(base, vprice)
			p.Name = fmt.Sprintf("%s (%s)", p.Name, sku)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[ref] = p
	}
	return out, nil
}

func mapWriteErr(err error) error {
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicateSKU
	}
	return err
}
