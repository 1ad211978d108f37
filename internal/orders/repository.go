package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebenmerlin/material-management-api/internal/platform/db"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetItems(ctx context.Context, orderID int64) ([]Item, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// TxRepository exposes transactional operations. Creation preconditions are
// re-checked inside the transaction so a concurrent create cannot slip
// between check and insert.
type TxRepository interface {
	GetIndentForOrder(ctx context.Context, indentID int64) (*IndentRef, error)
	OrderExistsForIndent(ctx context.Context, indentID int64) (bool, error)
	CreateOrder(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	GetOrderForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	DeleteItems(ctx context.Context, orderID int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `o.id, o.indent_id, o.order_number, o.vendor_name, o.vendor_contact, o.vendor_address,
	o.order_date, o.expected_delivery_date, o.total_amount, o.status, o.created_by, o.version,
	o.created_at, o.updated_at,
	i.indent_number, i.site_id, s.site_name, s.site_code, u.full_name AS created_by_name`

const orderJoins = `FROM orders o
JOIN indents i ON i.id = o.indent_id
JOIN sites s ON s.id = i.site_id
JOIN users u ON u.id = o.created_by`

// GetOrder returns the order header with joined indent, site and user facts.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` `+orderJoins+` WHERE o.id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// GetItems returns the order lines with joined material facts.
func (r *Repository) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT oi.id, oi.order_id, oi.material_id, oi.quantity,
	oi.unit_price, oi.total_price, oi.specifications,
	m.material_name, m.material_code, m.unit, m.category
FROM order_items oi
JOIN materials m ON m.id = oi.material_id
WHERE oi.order_id = $1
ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var specs []byte
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MaterialID, &item.Quantity,
			&item.UnitPrice, &item.TotalPrice, &specs,
			&item.MaterialName, &item.MaterialCode, &item.Unit, &item.Category); err != nil {
			return nil, err
		}
		item.Specifications = map[string]any{}
		if len(specs) > 0 {
			if err := json.Unmarshal(specs, &item.Specifications); err != nil {
				return nil, fmt.Errorf("orders: parse specifications: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOrders lists headers newest first, optionally filtered by the parent
// indent's site and by order status.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderJoins + ` WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.SiteID != nil {
		query += fmt.Sprintf(` AND i.site_id = $%d`, idx)
		args = append(args, *filter.SiteID)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND o.status = $%d`, idx)
		args = append(args, string(filter.Status))
		idx++
	}
	query += fmt.Sprintf(` ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.IndentID, &o.OrderNumber, &o.VendorName, &o.VendorContact, &o.VendorAddress,
		&o.OrderDate, &o.ExpectedDeliveryDate, &o.TotalAmount, &status, &o.CreatedBy, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
		&o.IndentNumber, &o.SiteID, &o.SiteName, &o.SiteCode, &o.CreatedByName); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (t *txRepo) GetIndentForOrder(ctx context.Context, indentID int64) (*IndentRef, error) {
	var ref IndentRef
	err := t.tx.QueryRow(ctx, `SELECT id, status, site_id FROM indents WHERE id = $1 FOR UPDATE`,
		indentID).Scan(&ref.ID, &ref.Status, &ref.SiteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

func (t *txRepo) OrderExistsForIndent(ctx context.Context, indentID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE indent_id = $1)`, indentID).Scan(&exists)
	return exists, err
}

func (t *txRepo) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (indent_id, order_number, vendor_name, vendor_contact, vendor_address,
	order_date, expected_delivery_date, total_amount, status, created_by, version)
VALUES ($1, $2, $3, $4, $5, CURRENT_DATE, $6, $7, $8, $9, 1) RETURNING id`,
		o.IndentID, o.OrderNumber, o.VendorName, o.VendorContact, o.VendorAddress,
		o.ExpectedDeliveryDate, o.TotalAmount, string(o.Status), o.CreatedBy).Scan(&id)
	if err != nil {
		// The unique index on indent_id is the backstop for the in-transaction
		// existence check.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: order already exists for this indent", shared.ErrStateConflict)
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	var specs []byte
	if len(item.Specifications) > 0 {
		var err error
		specs, err = json.Marshal(item.Specifications)
		if err != nil {
			return fmt.Errorf("orders: encode specifications: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO order_items (order_id, material_id, quantity, unit_price, total_price, specifications)
VALUES ($1, $2, $3, $4, $5, $6)`,
		item.OrderID, item.MaterialID, item.Quantity, item.UnitPrice, item.TotalPrice, specs)
	return err
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	var o Order
	var status string
	err := t.tx.QueryRow(ctx, `SELECT id, indent_id, order_number, status, version FROM orders WHERE id = $1 FOR UPDATE`,
		id).Scan(&o.ID, &o.IndentID, &o.OrderNumber, &status, &o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (t *txRepo) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders
SET vendor_name = $2, vendor_contact = $3, vendor_address = $4, expected_delivery_date = $5,
	total_amount = $6, version = version + 1, updated_at = NOW()
WHERE id = $1`,
		o.ID, o.VendorName, o.VendorContact, o.VendorAddress, o.ExpectedDeliveryDate, o.TotalAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
