package shared

// Identity is the authenticated caller attached to each request. Role and
// SiteID are re-read from the directory on every request, never taken from
// the token payload, so revocations and role changes apply immediately.
type Identity struct {
	UserID   int64
	Username string
	FullName string
	Role     Role
	SiteID   *int64
}

// HasRole reports whether the identity holds one of the given roles.
func (id Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// CanAccessSite applies the site isolation rule: Purchase Team and Director
// see every site; a Site Engineer only their assigned one.
func (id Identity) CanAccessSite(siteID int64) bool {
	if !id.Role.SiteScoped() {
		return true
	}
	return id.SiteID != nil && *id.SiteID == siteID
}

// SiteFilter returns the site id to scope list queries by, or nil when the
// caller may see all sites.
func (id Identity) SiteFilter() *int64 {
	if id.Role.SiteScoped() {
		return id.SiteID
	}
	return nil
}
