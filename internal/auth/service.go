package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/thebenmerlin/material-management-api/internal/directory"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	users directory.Repository
}

// NewService constructs a new Service.
func NewService(users directory.Repository) *Service {
	return &Service{users: users}
}

// Authenticate validates username/password credentials. For Site Engineers a
// provided site code must match their assigned site, and they must have one.
func (s *Service) Authenticate(ctx context.Context, username, password, siteCode string) (*directory.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if user.Role == shared.RoleSiteEngineer {
		if user.SiteID == nil {
			return nil, shared.ErrInvalidCredentials
		}
		if siteCode != "" && user.SiteCode != siteCode {
			return nil, shared.ErrInvalidCredentials
		}
	}
	return user, nil
}

// Resolve loads the fresh directory record for a verified token subject.
// Inactive or deleted users are rejected even while their token is valid.
func (s *Service) Resolve(ctx context.Context, userID int64) (*directory.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	return user, nil
}
