// Package identity defines the contract with the external identity and
// organization-directory service. zira consumes this directory; it never
// manages accounts or memberships itself.
package identity

import "context"

// Role is an organization-level role granted by the directory.
type Role string

const (
	RoleAdmin  Role = "org:admin"
	RoleMember Role = "org:member"
)

// Caller is the resolved identity of a request. Core operations take a
// Caller value explicitly; there is no ambient auth state.
type Caller struct {
	UserID         string // directory's user key
	OrganizationID string // active organization
	Role           Role
}

// IsAdmin reports whether the caller holds the org admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Member is one organization membership entry.
type Member struct {
	UserID string
	Role   Role
}

// Directory resolves callers and organization memberships.
type Directory interface {
	// ResolveCaller maps a credential (e.g. a bearer token) to the
	// caller it identifies. A zero Caller with a nil error is never
	// returned; unknown credentials are an error.
	ResolveCaller(ctx context.Context, credential string) (Caller, error)

	// ListOrgMembers returns the members of an organization.
	ListOrgMembers(ctx context.Context, orgID string) ([]Member, error)
}
