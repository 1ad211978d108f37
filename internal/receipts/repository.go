package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebenmerlin/material-management-api/internal/platform/db"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)
	GetItems(ctx context.Context, receiptID int64) ([]Item, error)
	GetImages(ctx context.Context, receiptID int64) ([]Image, error)
	ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, error)
	GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error)
}

// TxRepository exposes transactional operations. Status derivation reads run
// in the same transaction as the inserts so the accounted sums include the
// receipt being created.
type TxRepository interface {
	CreateReceipt(ctx context.Context, rec Receipt) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	InsertImage(ctx context.Context, img Image) error
	GetOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)
	SumAccounted(ctx context.Context, orderID int64) (map[int64]float64, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) error
	CompleteIndent(ctx context.Context, indentID int64) error
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

const receiptColumns = `r.id, r.order_id, r.receipt_number, r.received_by, r.received_date,
	r.delivery_challan_number, r.is_partial, r.notes, r.created_at,
	o.order_number, i.indent_number, i.site_id, s.site_name, s.site_code, u.full_name AS received_by_name`

const receiptJoins = `FROM receipts r
JOIN orders o ON o.id = r.order_id
JOIN indents i ON i.id = o.indent_id
JOIN sites s ON s.id = i.site_id
JOIN users u ON u.id = r.received_by`

// GetReceipt returns the receipt header with joined order, indent, site and
// user facts.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` `+receiptJoins+` WHERE r.id = $1`, id)
	rec, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// GetItems returns the receipt lines with joined order item and material
// facts.
func (r *Repository) GetItems(ctx context.Context, receiptID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT ri.id, ri.receipt_id, ri.order_item_id,
	ri.received_quantity, ri.damaged_quantity, ri.returned_quantity,
	ri.damage_description, ri.return_reason, ri.condition_notes,
	oi.quantity AS ordered_quantity, oi.unit_price, oi.total_price,
	m.material_name, m.material_code, m.unit, m.category
FROM receipt_items ri
JOIN order_items oi ON oi.id = ri.order_item_id
JOIN materials m ON m.id = oi.material_id
WHERE ri.receipt_id = $1
ORDER BY ri.id`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("receipts: get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.OrderItemID,
			&item.ReceivedQuantity, &item.DamagedQuantity, &item.ReturnedQuantity,
			&item.DamageDescription, &item.ReturnReason, &item.ConditionNotes,
			&item.OrderedQuantity, &item.UnitPrice, &item.TotalPrice,
			&item.MaterialName, &item.MaterialCode, &item.Unit, &item.Category); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetImages returns the receipt's evidence photos.
func (r *Repository) GetImages(ctx context.Context, receiptID int64) ([]Image, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, receipt_id, image_path, image_type, description, created_at
FROM receipt_images WHERE receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("receipts: get images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ReceiptID, &img.ImagePath, &img.ImageType, &img.Description, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ListReceipts lists headers newest first, optionally filtered by order and
// by the order's site.
func (r *Repository) ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	query := `SELECT ` + receiptColumns + ` ` + receiptJoins + ` WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.SiteID != nil {
		query += fmt.Sprintf(` AND i.site_id = $%d`, idx)
		args = append(args, *filter.SiteID)
		idx++
	}
	if filter.OrderID > 0 {
		query += fmt.Sprintf(` AND r.order_id = $%d`, idx)
		args = append(args, filter.OrderID)
		idx++
	}
	query += fmt.Sprintf(` ORDER BY r.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("receipts: list: %w", err)
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *rec)
	}
	return receipts, rows.Err()
}

// GetOrderRef resolves the order's parent indent and site for authorization.
func (r *Repository) GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error) {
	var ref OrderRef
	err := r.pool.QueryRow(ctx, `SELECT o.id, o.indent_id, i.site_id, o.status
FROM orders o JOIN indents i ON i.id = o.indent_id WHERE o.id = $1`, orderID).
		Scan(&ref.ID, &ref.IndentID, &ref.SiteID, &ref.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rec Receipt
	if err := row.Scan(&rec.ID, &rec.OrderID, &rec.ReceiptNumber, &rec.ReceivedBy, &rec.ReceivedDate,
		&rec.DeliveryChallanNumber, &rec.IsPartial, &rec.Notes, &rec.CreatedAt,
		&rec.OrderNumber, &rec.IndentNumber, &rec.SiteID, &rec.SiteName, &rec.SiteCode, &rec.ReceivedByName); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (t *txRepo) CreateReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipts (order_id, receipt_number, received_by, received_date,
	delivery_challan_number, is_partial, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.OrderID, rec.ReceiptNumber, rec.ReceivedBy, rec.ReceivedDate,
		rec.DeliveryChallanNumber, rec.IsPartial, rec.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO receipt_items (receipt_id, order_item_id, received_quantity,
	damaged_quantity, returned_quantity, damage_description, return_reason, condition_notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ReceiptID, item.OrderItemID, item.ReceivedQuantity,
		item.DamagedQuantity, item.ReturnedQuantity, item.DamageDescription, item.ReturnReason, item.ConditionNotes)
	return err
}

func (t *txRepo) InsertImage(ctx context.Context, img Image) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO receipt_images (receipt_id, image_path, image_type, description)
VALUES ($1, $2, $3, $4)`,
		img.ReceiptID, img.ImagePath, img.ImageType, img.Description)
	return err
}

func (t *txRepo) GetOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, quantity FROM order_items WHERE order_id = $1 FOR SHARE`, orderID)
	if err != nil {
		return nil, fmt.Errorf("receipts: order lines: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.OrderItemID, &line.Ordered); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// SumAccounted totals received, damaged and returned quantities per order
// item across every receipt for the order.
func (t *txRepo) SumAccounted(ctx context.Context, orderID int64) (map[int64]float64, error) {
	rows, err := t.tx.Query(ctx, `SELECT ri.order_item_id,
	COALESCE(SUM(ri.received_quantity + ri.damaged_quantity + ri.returned_quantity), 0)
FROM receipt_items ri
JOIN order_items oi ON oi.id = ri.order_item_id
WHERE oi.order_id = $1
GROUP BY ri.order_item_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("receipts: sum accounted: %w", err)
	}
	defer rows.Close()

	accounted := map[int64]float64{}
	for rows.Next() {
		var itemID int64
		var sum float64
		if err := rows.Scan(&itemID, &sum); err != nil {
			return nil, err
		}
		accounted[itemID] = sum
	}
	return accounted, rows.Err()
}

func (t *txRepo) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
	return err
}

func (t *txRepo) CompleteIndent(ctx context.Context, indentID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE indents SET status = 'Completed', updated_at = NOW() WHERE id = $1`, indentID)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
