package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/emberroast/brewcart/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, category,
		image_thumbnail, image_mobile, image_tablet, image_desktop, customizations`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products
		(id, name, description, price, category,
		 image_thumbnail, image_mobile, image_tablet, image_desktop, customizations)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		image_thumbnail = EXCLUDED.image_thumbnail,
		image_mobile = EXCLUDED.image_mobile,
		image_tablet = EXCLUDED.image_tablet,
		image_desktop = EXCLUDED.image_desktop,
		customizations = EXCLUDED.customizations`
)

// optionGroupRow is the JSONB shape of a product's customization groups.
type optionGroupRow struct {
	Type    string      `json:"type"`
	Options []optionRow `json:"options"`
}

type optionRow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or replaces a catalog row. Used by the seeder.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	groups := make([]optionGroupRow, len(p.Customizations))
	for i, g := range p.Customizations {
		groups[i] = optionGroupRow{Type: g.Type, Options: make([]optionRow, len(g.Options))}
		for j, o := range g.Options {
			groups[i].Options[j] = optionRow{ID: o.ID, Name: o.Name, PriceDelta: o.PriceDelta}
		}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("marshaling customizations: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category,
		p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		groupsJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		price      decimal.Decimal
		groupsJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &price, &p.Category,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
		&groupsJSON,
	)
	if err != nil {
		return product.Product{}, err
	}
	p.Price = price

	var groups []optionGroupRow
	if err := json.Unmarshal(groupsJSON, &groups); err != nil {
		return product.Product{}, fmt.Errorf("unmarshaling customizations for %q: %w", p.ID, err)
	}
	p.Customizations = make([]product.OptionGroup, len(groups))
	for i, g := range groups {
		p.Customizations[i] = product.OptionGroup{Type: g.Type, Options: make([]product.Option, len(g.Options))}
		for j, o := range g.Options {
			p.Customizations[i].Options[j] = product.Option{ID: o.ID, Name: o.Name, PriceDelta: o.PriceDelta}
		}
	}
	return p, nil
}
