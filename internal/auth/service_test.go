package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thebenmerlin/material-management-api/internal/directory"
	"github.com/thebenmerlin/material-management-api/internal/shared"
)

type memoryDirectory struct {
	users map[string]*directory.User
	sites map[int64]*directory.Site
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		users: map[string]*directory.User{},
		sites: map[int64]*directory.Site{},
	}
}

func (m *memoryDirectory) addUser(u directory.User) {
	m.users[u.Username] = &u
}

func (m *memoryDirectory) GetUserByID(_ context.Context, id int64) (*directory.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryDirectory) GetUserByUsername(_ context.Context, username string) (*directory.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryDirectory) GetSite(_ context.Context, id int64) (*directory.Site, error) {
	s, ok := m.sites[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticateSuccess(t *testing.T) {
	dir := newMemoryDirectory()
	siteID := int64(3)
	dir.addUser(directory.User{
		ID:           1,
		Username:     "engineer1",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RoleSiteEngineer,
		SiteID:       &siteID,
		SiteCode:     "MUM01",
		IsActive:     true,
	})

	svc := NewService(dir)
	user, err := svc.Authenticate(context.Background(), "engineer1", "password123", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.Equal(t, shared.RoleSiteEngineer, user.Role)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addUser(directory.User{
		ID:           1,
		Username:     "director1",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RoleDirector,
		IsActive:     true,
	})

	svc := NewService(dir)
	_, err := svc.Authenticate(context.Background(), "director1", "wrong", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := NewService(newMemoryDirectory())
	_, err := svc.Authenticate(context.Background(), "ghost", "password123", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addUser(directory.User{
		ID:           2,
		Username:     "former",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RolePurchaseTeam,
		IsActive:     false,
	})

	svc := NewService(dir)
	_, err := svc.Authenticate(context.Background(), "former", "password123", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateSiteCodeMismatch(t *testing.T) {
	dir := newMemoryDirectory()
	siteID := int64(3)
	dir.addUser(directory.User{
		ID:           1,
		Username:     "engineer1",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RoleSiteEngineer,
		SiteID:       &siteID,
		SiteCode:     "MUM01",
		IsActive:     true,
	})

	svc := NewService(dir)

	_, err := svc.Authenticate(context.Background(), "engineer1", "password123", "DEL02")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Matching code passes.
	_, err = svc.Authenticate(context.Background(), "engineer1", "password123", "MUM01")
	require.NoError(t, err)
}

func TestAuthenticateEngineerWithoutSite(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addUser(directory.User{
		ID:           4,
		Username:     "unassigned",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RoleSiteEngineer,
		IsActive:     true,
	})

	svc := NewService(dir)
	_, err := svc.Authenticate(context.Background(), "unassigned", "password123", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolveRejectsInactive(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addUser(directory.User{
		ID:           7,
		Username:     "former",
		PasswordHash: hashPassword(t, "password123"),
		Role:         shared.RolePurchaseTeam,
		IsActive:     false,
	})

	svc := NewService(dir)
	_, err := svc.Resolve(context.Background(), 7)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 24*time.Hour)

	token, err := issuer.Issue(42, time.Now())
	require.NoError(t, err)

	userID, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)

	token, err := issuer.Issue(42, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).Issue(42, time.Now())
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b", time.Hour).Verify(token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
