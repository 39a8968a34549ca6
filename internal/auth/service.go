package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/obs"
)

// Service is the session issuer and validator. Every authentication
// event it produces is recorded in the audit trail: success paths fail
// closed when the trail write fails, denial paths log the write error
// and surface the original denial.
type Service struct {
	store    Store
	signer   *TokenSigner
	recorder audit.Recorder
	eval     *Evaluator
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, signer *TokenSigner, recorder audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if signer == nil {
		return nil, errors.New("auth: token signer is required")
	}
	if recorder == nil {
		return nil, errors.New("auth: audit recorder is required")
	}
	eval, err := NewEvaluator(store.Organizations())
	if err != nil {
		return nil, err
	}
	s := &Service{store: store, signer: signer, recorder: recorder, eval: eval, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluator exposes the reachability evaluator backed by this service's
// organization directory.
func (s *Service) Evaluator() *Evaluator { return s.eval }

// Authenticate verifies credentials and issues a session token. Unknown
// usernames and hash mismatches return the same error; both write one
// access_denied record before the failure surfaces.
func (s *Service) Authenticate(ctx context.Context, username, password string, meta RequestMeta) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.recordDenied(ctx, "", meta, fmt.Sprintf("failed login attempt for %q", username))
		return Session{}, ErrInvalidCredentials
	}

	identity, err := s.store.Identities().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.recordDenied(ctx, "", meta, fmt.Sprintf("failed login attempt for %q", username))
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		s.recordDenied(ctx, identity.ID, meta, "failed login attempt")
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.signer.Mint(identity)
	if err != nil {
		return Session{}, err
	}
	rec := &audit.Record{
		ActorID:      identity.ID,
		Action:       audit.ActionLogin,
		ResourceType: "auth",
		ResourceID:   identity.ID,
		Details:      "user logged in",
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		return Session{}, fmt.Errorf("auth: audit write failed: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Username       string
	Password       string
	Role           Role
	OrganizationID string
}

// Register creates an identity and issues a session immediately; there
// is no separate confirmation step.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return Session{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return Session{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !in.Role.Valid() {
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if strings.TrimSpace(in.OrganizationID) == "" {
		return Session{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}

	if _, err := s.store.Identities().FindByUsername(ctx, in.Username); err == nil {
		return Session{}, ErrDuplicateUsername
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return Session{}, err
	}
	if _, err := s.store.Organizations().Find(ctx, in.OrganizationID); err != nil {
		return Session{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	identity := &Identity{
		ID:             uuid.NewString(),
		Username:       in.Username,
		PasswordHash:   hash,
		Role:           in.Role,
		OrganizationID: in.OrganizationID,
		CreatedAt:      s.now().UTC(),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.store.Identities().Create(ctx, identity); err != nil {
		return Session{}, err
	}

	token, expiresAt, err := s.signer.Mint(identity)
	if err != nil {
		return Session{}, err
	}
	rec := &audit.Record{
		ActorID:      identity.ID,
		Action:       audit.ActionCreate,
		ResourceType: "user",
		ResourceID:   identity.ID,
		Details:      "user registered",
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		return Session{}, fmt.Errorf("auth: audit write failed: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

// Resolve validates a presented token and re-reads the account by the
// token's subject. The embedded role and organization claims are never
// trusted as current truth, so role changes made after issuance are
// honored for the token's remaining lifetime.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	identity, err := s.store.Identities().Find(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// ValidateAndAuthorize is the single entry point protected operations
// call: resolve the token, check the role minimum, and when a concrete
// resource is in play, check organization reachability. On a role or
// reachability denial the resolved identity is returned with the error
// so callers can attribute the denial in the trail.
func (s *Service) ValidateAndAuthorize(ctx context.Context, token string, required Role, res *Resource) (*Identity, error) {
	identity, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := RequireRole(identity.Role, required); err != nil {
		obs.CountAuthDecision("deny")
		return identity, err
	}
	if res != nil {
		if err := s.eval.CheckResourceAccess(ctx, identity, res.OrganizationID); err != nil {
			obs.CountAuthDecision("deny")
			return identity, err
		}
	}
	obs.CountAuthDecision("allow")
	return identity, nil
}

// CreateOrganization adds a tenant. A parent that is itself a child is
// rejected so the hierarchy never exceeds two levels; the reachability
// rule depends on that bound.
func (s *Service) CreateOrganization(ctx context.Context, name string, parentID *string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	orgs := s.store.Organizations()
	if _, err := orgs.FindByName(ctx, name); err == nil {
		return nil, ErrDuplicateOrganization
	} else if !errors.Is(err, ErrOrganizationNotFound) {
		return nil, err
	}
	if parentID != nil {
		parent, err := orgs.Find(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.ParentID != nil {
			return nil, fmt.Errorf("%w: organization hierarchy is limited to two levels", ErrInvalidInput)
		}
	}
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: s.now().UTC(),
		UpdatedAt: s.now().UTC(),
	}
	if err := orgs.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// ListOrganizations returns the directory. Listing is public: clients
// need it to pick an organization during registration.
func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.Organizations().List(ctx)
}

// recordDenied writes an access_denied record for a failing
// authentication. The trail write must happen before the failure
// surfaces, and its own failure must not mask the denial, so append
// errors are logged instead of returned.
func (s *Service) recordDenied(ctx context.Context, actorID string, meta RequestMeta, details string) {
	rec := &audit.Record{
		ActorID:      actorID,
		Action:       audit.ActionAccessDenied,
		ResourceType: "auth",
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		obs.Logger().Error().Err(err).Msg("audit append failed on denied login")
	}
}
