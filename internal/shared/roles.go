package shared

// Role enumerates the three fixed user roles. The values are the exact
// strings stored in the users table and returned on the wire.
type Role string

const (
	// RoleSiteEngineer raises indents and records receipts for one site.
	RoleSiteEngineer Role = "Site Engineer"
	// RolePurchaseTeam approves indents and manages purchase orders.
	RolePurchaseTeam Role = "Purchase Team"
	// RoleDirector gives final approval on indents.
	RoleDirector Role = "Director"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSiteEngineer, RolePurchaseTeam, RoleDirector:
		return true
	}
	return false
}

// SiteScoped reports whether the role is confined to a single site.
// Purchase Team and Director operate across all sites.
func (r Role) SiteScoped() bool {
	return r == RoleSiteEngineer
}

// AllRoles lists every role, for endpoints open to any authenticated user.
func AllRoles() []Role {
	return []Role{RoleSiteEngineer, RolePurchaseTeam, RoleDirector}
}
