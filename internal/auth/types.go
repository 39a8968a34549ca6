package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission level carried by every identity.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// roleRanks is the single definition of the Owner > Admin > Viewer order.
// Both the coarse role check and the delete ownership rule read it.
var roleRanks = map[Role]int{
	RoleOwner:  3,
	RoleAdmin:  2,
	RoleViewer: 1,
}

// Rank returns the numeric rank of the role, 0 for unknown values.
func (r Role) Rank() int { return roleRanks[r] }

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool { return roleRanks[r] > 0 }

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Identity is an account record. Role and organization are fixed at
// registration; only the password hash supports rotation.
type Identity struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization is a tenant. ParentID links a child to its root; the
// hierarchy is at most two levels deep, enforced on creation.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resource is the minimal view of an access-controlled object. The core
// never inspects anything beyond these two fields.
type Resource struct {
	OrganizationID string
	CreatedByID    string
}

// RequestMeta carries forensic attributes of the inbound request.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Session is an issued credential together with its subject.
type Session struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  *Identity `json:"user"`
}
