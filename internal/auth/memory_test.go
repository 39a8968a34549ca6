package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tasktrail.org/internal/audit"
)

// memoryStore is the in-memory Store used across the package tests.
type memoryStore struct {
	mu         sync.Mutex
	identities map[string]*Identity
	orgs       map[string]*Organization
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		identities: make(map[string]*Identity),
		orgs:       make(map[string]*Organization),
	}
}

func (m *memoryStore) Identities() IdentityStore { return (*memoryIdentities)(m) }

func (m *memoryStore) Organizations() OrganizationStore { return (*memoryOrgs)(m) }

type memoryIdentities memoryStore

func (m *memoryIdentities) Create(_ context.Context, id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.Username == id.Username {
			return ErrDuplicateUsername
		}
	}
	cp := *id
	m.identities[id.ID] = &cp
	return nil
}

func (m *memoryIdentities) Find(_ context.Context, id string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if found, ok := m.identities[id]; ok {
		cp := *found
		return &cp, nil
	}
	return nil, ErrIdentityNotFound
}

func (m *memoryIdentities) FindByUsername(_ context.Context, username string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, found := range m.identities {
		if found.Username == username {
			cp := *found
			return &cp, nil
		}
	}
	return nil, ErrIdentityNotFound
}

type memoryOrgs memoryStore

func (m *memoryOrgs) Create(_ context.Context, org *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orgs {
		if existing.Name == org.Name {
			return ErrDuplicateOrganization
		}
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

func (m *memoryOrgs) Find(_ context.Context, id string) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if found, ok := m.orgs[id]; ok {
		cp := *found
		return &cp, nil
	}
	return nil, ErrOrganizationNotFound
}

func (m *memoryOrgs) FindByName(_ context.Context, name string) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, found := range m.orgs {
		if found.Name == name {
			cp := *found
			return &cp, nil
		}
	}
	return nil, ErrOrganizationNotFound
}

func (m *memoryOrgs) Children(_ context.Context, parentID string) ([]*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var children []*Organization
	for _, found := range m.orgs {
		if found.ParentID != nil && *found.ParentID == parentID {
			cp := *found
			children = append(children, &cp)
		}
	}
	return children, nil
}

func (m *memoryOrgs) List(_ context.Context) ([]*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*Organization
	for _, found := range m.orgs {
		cp := *found
		list = append(list, &cp)
	}
	return list, nil
}

// memoryRecorder collects audit records, optionally failing every append.
type memoryRecorder struct {
	mu      sync.Mutex
	records []*audit.Record
	fail    error
}

func (m *memoryRecorder) Append(_ context.Context, rec *audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *memoryRecorder) byAction(action audit.Action) []*audit.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*audit.Record
	for _, rec := range m.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

func seedOrg(t *testing.T, store *memoryStore, name string, parentID *string) *Organization {
	t.Helper()
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Organizations().Create(context.Background(), org))
	return org
}

func seedIdentity(t *testing.T, store *memoryStore, username, password string, role Role, orgID string) *Identity {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	id := &Identity{
		ID:             uuid.NewString(),
		Username:       username,
		PasswordHash:   hash,
		Role:           role,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.Identities().Create(context.Background(), id))
	return id
}
