package auth

import "context"

// IdentityStore persists accounts. Username matching is case-sensitive
// exact; Create fails with ErrDuplicateUsername on a taken name.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
}

// OrganizationStore persists tenants and the parent/child relation.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	FindByName(ctx context.Context, name string) (*Organization, error)
	Children(ctx context.Context, parentID string) ([]*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// Store bundles the persistence the auth subsystem needs.
type Store interface {
	Identities() IdentityStore
	Organizations() OrganizationStore
}
