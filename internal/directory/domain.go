// Package directory exposes read-only user and site facts. The workflow
// engine consults it for authorization; it never mutates either table.
package directory

import (
	"time"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// User is a directory account. SiteID is set only for Site Engineers.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         shared.Role
	SiteID       *int64
	FullName     string
	Email        string
	IsActive     bool
	CreatedAt    time.Time

	// Populated from the joined site row when present.
	SiteCode string
	SiteName string
}

// Site is an immutable construction site record, the root of the
// isolation boundary.
type Site struct {
	ID       int64
	Code     string
	Name     string
	Location string
}

// Identity converts the directory record into the per-request identity.
func (u *User) Identity() shared.Identity {
	return shared.Identity{
		UserID:   u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
		SiteID:   u.SiteID,
	}
}
