package auth

import (
	"context"
	"errors"
)

// RequireRole is the coarse role-sufficiency check: the caller's rank
// must meet the required minimum.
func RequireRole(caller, required Role) error {
	if caller.Rank() >= required.Rank() && required.Valid() {
		return nil
	}
	return ErrInsufficientRole
}

// CanDelete applies the fine-grained deletion rule: owners may delete
// anything in reach, admins only resources they created themselves.
func CanDelete(caller *Identity, res Resource) error {
	if err := RequireRole(caller.Role, RoleAdmin); err != nil {
		return err
	}
	if caller.Role == RoleOwner {
		return nil
	}
	if res.CreatedByID == caller.ID {
		return nil
	}
	return ErrInsufficientRole
}

// Evaluator decides organization reachability against the directory.
type Evaluator struct {
	orgs OrganizationStore
}

func NewEvaluator(orgs OrganizationStore) (*Evaluator, error) {
	if orgs == nil {
		return nil, errors.New("auth: organization store is required")
	}
	return &Evaluator{orgs: orgs}, nil
}

// CheckResourceAccess grants access when the resource lives in the
// caller's organization, or when the caller is an owner and the
// resource's organization is a direct child of the caller's. One level
// only: grandchildren are out of reach by construction.
func (e *Evaluator) CheckResourceAccess(ctx context.Context, caller *Identity, resourceOrgID string) error {
	if caller.OrganizationID == resourceOrgID {
		return nil
	}
	if caller.Role != RoleOwner {
		return ErrOrganizationAccessDenied
	}
	org, err := e.orgs.Find(ctx, resourceOrgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			return ErrOrganizationAccessDenied
		}
		return err
	}
	if org.ParentID != nil && *org.ParentID == caller.OrganizationID {
		return nil
	}
	return ErrOrganizationAccessDenied
}

// AccessibleOrgIDs is the inverse form used by collection queries: the
// caller's own organization, plus direct children for owners.
func (e *Evaluator) AccessibleOrgIDs(ctx context.Context, caller *Identity) ([]string, error) {
	orgIDs := []string{caller.OrganizationID}
	if caller.Role != RoleOwner {
		return orgIDs, nil
	}
	children, err := e.orgs.Children(ctx, caller.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		orgIDs = append(orgIDs, child.ID)
	}
	return orgIDs, nil
}
