package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Repository defines directory lookups used by auth and the workflow engine.
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetSite(ctx context.Context, id int64) (*Site, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `u.id, u.username, u.password_hash, u.role, u.site_id, u.full_name,
	COALESCE(u.email, ''), u.is_active, u.created_at,
	COALESCE(s.site_code, ''), COALESCE(s.site_name, '')`

// GetUserByID fetches a user with their site, if any.
func (r *PGRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u LEFT JOIN sites s ON s.id = u.site_id WHERE u.id = $1`, id)
	return scanUser(row)
}

// GetUserByUsername fetches an active user by username for login.
func (r *PGRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users u LEFT JOIN sites s ON s.id = u.site_id WHERE u.username = $1`, username)
	return scanUser(row)
}

// GetSite fetches a site by id.
func (r *PGRepository) GetSite(ctx context.Context, id int64) (*Site, error) {
	var site Site
	err := r.pool.QueryRow(ctx, `SELECT id, site_code, site_name, COALESCE(location, '')
FROM sites WHERE id = $1`, id).Scan(&site.ID, &site.Code, &site.Name, &site.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &site, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.SiteID, &u.FullName,
		&u.Email, &u.IsActive, &u.CreatedAt, &u.SiteCode, &u.SiteName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = shared.Role(role)
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
