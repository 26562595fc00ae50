package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
	"github.com/emberroast/brewcart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, session_id, items, subtotal, discount, total, coupon_code,
		 delivery_type, contact_name, contact_email, contact_phone, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	listRecentOrdersSQL = `SELECT id, session_id, items, subtotal, discount, total, coupon_code,
		delivery_type, contact_name, contact_email, contact_phone, created_at
	FROM orders ORDER BY created_at DESC LIMIT $1`
)

// orderItemRow is the JSONB shape of one order line.
type orderItemRow struct {
	ProductID   string            `json:"productId"`
	ProductName string            `json:"productName"`
	Selection   map[string]selRow `json:"selection,omitempty"`
	Quantity    int               `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unitPrice"`
	LineTotal   decimal.Decimal   `json:"lineTotal"`
}

type selRow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order lines are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(itemRows(o.Items))
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.SessionID, itemsJSON, o.Subtotal, o.Discount, o.Total, o.CouponCode,
		string(o.DeliveryType), o.Contact.Name, o.Contact.Email, o.Contact.Phone, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// ListRecent returns the most recent orders, newest first.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listRecentOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func itemRows(items []order.Item) []orderItemRow {
	out := make([]orderItemRow, len(items))
	for i, it := range items {
		row := orderItemRow{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		}
		if len(it.Selection) > 0 {
			row.Selection = make(map[string]selRow, len(it.Selection))
			for g, opt := range it.Selection {
				row.Selection[g] = selRow{ID: opt.ID, Name: opt.Name, PriceDelta: opt.PriceDelta}
			}
		}
		out[i] = row
	}
	return out
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		itemsJSON    []byte
		deliveryType string
	)
	err := row.Scan(
		&o.ID, &o.SessionID, &itemsJSON, &o.Subtotal, &o.Discount, &o.Total, &o.CouponCode,
		&deliveryType, &o.Contact.Name, &o.Contact.Email, &o.Contact.Phone, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	o.DeliveryType = checkout.DeliveryMethod(deliveryType)

	var rowsItems []orderItemRow
	if err := json.Unmarshal(itemsJSON, &rowsItems); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling items for order %q: %w", o.ID, err)
	}
	o.Items = make([]order.Item, len(rowsItems))
	for i, it := range rowsItems {
		item := order.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		}
		if len(it.Selection) > 0 {
			item.Selection = make(cart.Selection, len(it.Selection))
			for g, opt := range it.Selection {
				item.Selection[g] = cart.SelectedOption{ID: opt.ID, Name: opt.Name, PriceDelta: opt.PriceDelta}
			}
		}
		o.Items[i] = item
	}
	return o, nil
}
