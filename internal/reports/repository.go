package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the aggregation reads behind the monthly report. All
// queries take the half-open [from, to) month window and an optional site
// scope.
type Repository interface {
	IndentRows(ctx context.Context, from, to time.Time, siteID *int64) ([]IndentRow, error)
	MaterialRollups(ctx context.Context, from, to time.Time, siteID *int64) ([]MaterialRollup, error)
	StatusBreakdown(ctx context.Context, from, to time.Time, siteID *int64) ([]StatusRow, error)
	TopMaterials(ctx context.Context, from, to time.Time, siteID *int64, limit int) ([]MaterialRollup, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// IndentRows returns every indent created in the window joined with its
// order, when one exists.
func (r *PGRepository) IndentRows(ctx context.Context, from, to time.Time, siteID *int64) ([]IndentRow, error) {
	query := `SELECT i.indent_number, i.status, i.total_estimated_cost, i.created_at,
	s.site_name, s.site_code, u.full_name,
	o.order_number, o.total_amount, o.vendor_name
FROM indents i
JOIN sites s ON s.id = i.site_id
JOIN users u ON u.id = i.created_by
LEFT JOIN orders o ON o.indent_id = i.id
WHERE i.created_at >= $1 AND i.created_at < $2`
	args := []any{from, to}
	if siteID != nil {
		query += ` AND i.site_id = $3`
		args = append(args, *siteID)
	}
	query += ` ORDER BY i.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: indent rows: %w", err)
	}
	defer rows.Close()

	var out []IndentRow
	for rows.Next() {
		var row IndentRow
		if err := rows.Scan(
			&row.IndentNumber, &row.Status, &row.EstimatedCost, &row.CreatedAt,
			&row.SiteName, &row.SiteCode, &row.CreatedByName,
			&row.OrderNumber, &row.ActualCost, &row.VendorName,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MaterialRollups aggregates indented quantity and ordered cost per material
// for the window.
func (r *PGRepository) MaterialRollups(ctx context.Context, from, to time.Time, siteID *int64) ([]MaterialRollup, error) {
	query := materialRollupQuery(siteID, 0)
	args := []any{from, to}
	if siteID != nil {
		args = append(args, *siteID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: material rollups: %w", err)
	}
	defer rows.Close()
	return scanRollups(rows)
}

// TopMaterials returns the costliest materials of the window, skipping those
// with no ordered cost yet.
func (r *PGRepository) TopMaterials(ctx context.Context, from, to time.Time, siteID *int64, limit int) ([]MaterialRollup, error) {
	query := materialRollupQuery(siteID, limit)
	args := []any{from, to}
	if siteID != nil {
		args = append(args, *siteID)
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: top materials: %w", err)
	}
	defer rows.Close()
	return scanRollups(rows)
}

// StatusBreakdown groups the window's indents by status with their estimated
// cost sums.
func (r *PGRepository) StatusBreakdown(ctx context.Context, from, to time.Time, siteID *int64) ([]StatusRow, error) {
	query := `SELECT i.status, COUNT(*), COALESCE(SUM(i.total_estimated_cost), 0)
FROM indents i
WHERE i.created_at >= $1 AND i.created_at < $2`
	args := []any{from, to}
	if siteID != nil {
		query += ` AND i.site_id = $3`
		args = append(args, *siteID)
	}
	query += ` GROUP BY i.status ORDER BY COUNT(*) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: status breakdown: %w", err)
	}
	defer rows.Close()

	var out []StatusRow
	for rows.Next() {
		var row StatusRow
		if err := rows.Scan(&row.Status, &row.Count, &row.TotalCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// materialRollupQuery builds the shared per-material aggregation. With a
// positive limit the result is restricted to materials that accrued actual
// cost, ordered by that cost.
func materialRollupQuery(siteID *int64, limit int) string {
	query := `SELECT m.material_name, m.category, COALESCE(SUM(ii.quantity), 0), m.unit,
	COALESCE(AVG(oi.unit_price), 0), COALESCE(SUM(oi.total_price), 0)
FROM indent_items ii
JOIN indents i ON i.id = ii.indent_id
JOIN materials m ON m.id = ii.material_id
LEFT JOIN orders o ON o.indent_id = i.id
LEFT JOIN order_items oi ON oi.order_id = o.id AND oi.material_id = m.id
WHERE i.created_at >= $1 AND i.created_at < $2`
	idx := 3
	if siteID != nil {
		query += fmt.Sprintf(` AND i.site_id = $%d`, idx)
		idx++
	}
	query += ` GROUP BY m.id, m.material_name, m.category, m.unit`
	if limit > 0 {
		query += fmt.Sprintf(` HAVING COALESCE(SUM(oi.total_price), 0) > 0
ORDER BY COALESCE(SUM(oi.total_price), 0) DESC LIMIT $%d`, idx)
	} else {
		query += ` ORDER BY COALESCE(SUM(oi.total_price), 0) DESC`
	}
	return query
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRollups(rows rowScanner) ([]MaterialRollup, error) {
	var out []MaterialRollup
	for rows.Next() {
		var m MaterialRollup
		if err := rows.Scan(&m.MaterialName, &m.Category, &m.TotalQuantity, &m.Unit, &m.AvgUnitPrice, &m.TotalCost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
