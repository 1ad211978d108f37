package indents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebenmerlin/material-management-api/internal/platform/db"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetIndent(ctx context.Context, id int64) (*Indent, error)
	GetItems(ctx context.Context, indentID int64) ([]Item, error)
	ListIndents(ctx context.Context, filter ListFilter) ([]Indent, error)
}

// TxRepository exposes transactional writes.
type TxRepository interface {
	CreateIndent(ctx context.Context, in Indent) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	GetStatusForUpdate(ctx context.Context, id int64) (Status, error)
	SetPurchaseApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error
	SetDirectorApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error
	SetRejected(ctx context.Context, id int64, reason string) error
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

const indentColumns = `i.id, i.indent_number, i.site_id, i.created_by, i.status, i.total_estimated_cost,
	i.purchase_approved_by, i.purchase_approved_at, i.director_approved_by, i.director_approved_at,
	i.rejection_reason, i.created_at, i.updated_at,
	s.site_name, s.site_code, u.full_name AS created_by_name,
	pu.full_name AS purchase_approved_by_name, du.full_name AS director_approved_by_name`

const indentJoins = `FROM indents i
JOIN sites s ON s.id = i.site_id
JOIN users u ON u.id = i.created_by
LEFT JOIN users pu ON pu.id = i.purchase_approved_by
LEFT JOIN users du ON du.id = i.director_approved_by`

// GetIndent returns the indent header with joined display names.
func (r *Repository) GetIndent(ctx context.Context, id int64) (*Indent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+indentColumns+` `+indentJoins+` WHERE i.id = $1`, id)
	in, err := scanIndent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// GetItems returns the indent's lines with joined material facts.
func (r *Repository) GetItems(ctx context.Context, indentID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT ii.id, ii.indent_id, ii.material_id, ii.quantity,
	ii.specifications, ii.estimated_unit_cost, ii.estimated_total_cost,
	m.material_name, m.material_code, m.unit, m.category
FROM indent_items ii
JOIN materials m ON m.id = ii.material_id
WHERE ii.indent_id = $1
ORDER BY ii.id`, indentID)
	if err != nil {
		return nil, fmt.Errorf("indents: get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var specs []byte
		if err := rows.Scan(&item.ID, &item.IndentID, &item.MaterialID, &item.Quantity,
			&specs, &item.EstimatedUnitCost, &item.EstimatedTotalCost,
			&item.MaterialName, &item.MaterialCode, &item.Unit, &item.Category); err != nil {
			return nil, err
		}
		item.Specifications = map[string]any{}
		if len(specs) > 0 {
			if err := json.Unmarshal(specs, &item.Specifications); err != nil {
				return nil, fmt.Errorf("indents: parse specifications: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListIndents lists headers newest first, optionally filtered by site and
// status.
func (r *Repository) ListIndents(ctx context.Context, filter ListFilter) ([]Indent, error) {
	query := `SELECT ` + indentColumns + ` ` + indentJoins + ` WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.SiteID != nil {
		query += fmt.Sprintf(` AND i.site_id = $%d`, idx)
		args = append(args, *filter.SiteID)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND i.status = $%d`, idx)
		args = append(args, string(filter.Status))
		idx++
	}
	query += fmt.Sprintf(` ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("indents: list: %w", err)
	}
	defer rows.Close()

	var items []Indent
	for rows.Next() {
		in, err := scanIndent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *in)
	}
	return items, rows.Err()
}

func scanIndent(row pgx.Row) (*Indent, error) {
	var in Indent
	var status string
	if err := row.Scan(&in.ID, &in.IndentNumber, &in.SiteID, &in.CreatedBy, &status, &in.TotalEstimatedCost,
		&in.PurchaseApprovedBy, &in.PurchaseApprovedAt, &in.DirectorApprovedBy, &in.DirectorApprovedAt,
		&in.RejectionReason, &in.CreatedAt, &in.UpdatedAt,
		&in.SiteName, &in.SiteCode, &in.CreatedByName,
		&in.PurchaseApprovedByName, &in.DirectorApprovedByName); err != nil {
		return nil, err
	}
	in.Status = Status(status)
	return &in, nil
}

func (t *txRepo) CreateIndent(ctx context.Context, in Indent) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO indents (indent_number, site_id, created_by, status, total_estimated_cost)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		in.IndentNumber, in.SiteID, in.CreatedBy, string(in.Status), in.TotalEstimatedCost).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) error {
	var specs []byte
	if len(item.Specifications) > 0 {
		var err error
		specs, err = json.Marshal(item.Specifications)
		if err != nil {
			return fmt.Errorf("indents: encode specifications: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO indent_items (indent_id, material_id, quantity, specifications, estimated_unit_cost, estimated_total_cost)
VALUES ($1, $2, $3, $4, $5, $6)`,
		item.IndentID, item.MaterialID, item.Quantity, specs, item.EstimatedUnitCost, item.EstimatedTotalCost)
	return err
}

// GetStatusForUpdate locks the indent row for the rest of the transaction so
// the status a transition was decided on cannot change before the write.
func (t *txRepo) GetStatusForUpdate(ctx context.Context, id int64) (Status, error) {
	var status string
	err := t.tx.QueryRow(ctx, `SELECT status FROM indents WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return Status(status), nil
}

func (t *txRepo) SetPurchaseApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	return t.setStatus(ctx, id, StatusPurchaseApproved,
		`purchase_approved_by = $3, purchase_approved_at = $4`, approvedBy, approvedAt)
}

func (t *txRepo) SetDirectorApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	return t.setStatus(ctx, id, StatusDirectorApproved,
		`director_approved_by = $3, director_approved_at = $4`, approvedBy, approvedAt)
}

func (t *txRepo) SetRejected(ctx context.Context, id int64, reason string) error {
	return t.setStatus(ctx, id, StatusRejected, `rejection_reason = $3`, reason)
}

func (t *txRepo) setStatus(ctx context.Context, id int64, status Status, extra string, args ...any) error {
	query := `UPDATE indents SET status = $2, updated_at = NOW(), ` + extra + ` WHERE id = $1`
	all := append([]any{id, string(status)}, args...)
	tag, err := t.tx.Exec(ctx, query, all...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
