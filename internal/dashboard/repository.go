package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the aggregation reads behind the dashboard.
type Repository interface {
	StatusCounts(ctx context.Context, siteID *int64) ([]StatusCount, error)
	RecentIndents(ctx context.Context, siteID *int64, limit int) ([]RecentIndent, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// StatusCounts groups indents by status, optionally for one site.
func (r *PGRepository) StatusCounts(ctx context.Context, siteID *int64) ([]StatusCount, error) {
	query := `SELECT status, COUNT(*) FROM indents`
	args := []any{}
	if siteID != nil {
		query += ` WHERE site_id = $1`
		args = append(args, *siteID)
	}
	query += ` GROUP BY status ORDER BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dashboard: status counts: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// RecentIndents returns the most recently updated indents with site and
// creator display names.
func (r *PGRepository) RecentIndents(ctx context.Context, siteID *int64, limit int) ([]RecentIndent, error) {
	query := `SELECT i.id, i.indent_number, i.status, i.updated_at, s.site_name, u.full_name
FROM indents i
JOIN sites s ON s.id = i.site_id
JOIN users u ON u.id = i.created_by`
	args := []any{}
	idx := 1
	if siteID != nil {
		query += fmt.Sprintf(` WHERE i.site_id = $%d`, idx)
		args = append(args, *siteID)
		idx++
	}
	query += fmt.Sprintf(` ORDER BY i.updated_at DESC LIMIT $%d`, idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dashboard: recent indents: %w", err)
	}
	defer rows.Close()

	var recent []RecentIndent
	for rows.Next() {
		var in RecentIndent
		if err := rows.Scan(&in.ID, &in.IndentNumber, &in.Status, &in.UpdatedAt, &in.SiteName, &in.CreatedByName); err != nil {
			return nil, err
		}
		recent = append(recent, in)
	}
	return recent, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
