package materials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Repository defines catalog reads used by the service.
type Repository interface {
	Search(ctx context.Context, filter SearchFilter) ([]Material, int, error)
	GetByID(ctx context.Context, id int64) (*Material, error)
	Categories(ctx context.Context) ([]string, error)
	ActiveIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const materialColumns = `id, material_code, material_name, category, unit, specifications, description, created_at`

// Search lists active materials matching the filter with the total count.
func (r *PGRepository) Search(ctx context.Context, filter SearchFilter) ([]Material, int, error) {
	where := ` WHERE is_active = TRUE`
	args := []any{}
	idx := 1
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (material_name ILIKE $%d OR material_code ILIKE $%d OR category ILIKE $%d OR description ILIKE $%d)`,
			idx, idx, idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Category != "" {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, filter.Category)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM materials`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("materials: count: %w", err)
	}

	query := `SELECT ` + materialColumns + ` FROM materials` + where +
		fmt.Sprintf(` ORDER BY material_name ASC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("materials: search: %w", err)
	}
	defer rows.Close()

	items := make([]Material, 0, filter.Limit)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("materials: search rows: %w", err)
	}
	return items, total, nil
}

// GetByID fetches one active material.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1 AND is_active = TRUE`, id)
	m, err := scanMaterial(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// ActiveIDs reports which of the given ids refer to active materials.
func (r *PGRepository) ActiveIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM materials WHERE id = ANY($1) AND is_active = TRUE`, ids)
	if err != nil {
		return nil, fmt.Errorf("materials: active ids: %w", err)
	}
	defer rows.Close()

	active := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active[id] = true
	}
	return active, rows.Err()
}

// Categories lists the distinct non-null categories of active materials.
func (r *PGRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM materials
WHERE is_active = TRUE AND category IS NOT NULL ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("materials: categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("materials: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	var specs []byte
	if err := row.Scan(&m.ID, &m.MaterialCode, &m.MaterialName, &m.Category, &m.Unit,
		&specs, &m.Description, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Specifications = map[string]any{}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &m.Specifications); err != nil {
			return nil, fmt.Errorf("materials: parse specifications: %w", err)
		}
	}
	return &m, nil
}

var _ Repository = (*PGRepository)(nil)
