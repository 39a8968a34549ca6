package tasks

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/obs"
)

// fakeTaskStore keeps tasks in a map.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*Task)}
}

func (f *fakeTaskStore) Create(_ context.Context, t *Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) Find(_ context.Context, id string) (*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (f *fakeTaskStore) ListByOrgs(_ context.Context, orgIDs []string) ([]*Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[string]bool, len(orgIDs))
	for _, id := range orgIDs {
		allowed[id] = true
	}
	var out []*Task
	for _, t := range f.tasks {
		if allowed[t.OrganizationID] {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) Update(_ context.Context, t *Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

// fakeOrgStore backs the reachability evaluator.
type fakeOrgStore struct {
	orgs map[string]*auth.Organization
}

func (f *fakeOrgStore) Create(_ context.Context, org *auth.Organization) error {
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgStore) Find(_ context.Context, id string) (*auth.Organization, error) {
	if org, ok := f.orgs[id]; ok {
		return org, nil
	}
	return nil, auth.ErrOrganizationNotFound
}

func (f *fakeOrgStore) FindByName(_ context.Context, name string) (*auth.Organization, error) {
	for _, org := range f.orgs {
		if org.Name == name {
			return org, nil
		}
	}
	return nil, auth.ErrOrganizationNotFound
}

func (f *fakeOrgStore) Children(_ context.Context, parentID string) ([]*auth.Organization, error) {
	var out []*auth.Organization
	for _, org := range f.orgs {
		if org.ParentID != nil && *org.ParentID == parentID {
			out = append(out, org)
		}
	}
	return out, nil
}

func (f *fakeOrgStore) List(_ context.Context) ([]*auth.Organization, error) {
	var out []*auth.Organization
	for _, org := range f.orgs {
		out = append(out, org)
	}
	return out, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*audit.Record
	fail    error
}

func (f *fakeRecorder) Append(_ context.Context, rec *audit.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	cp := *rec
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeRecorder) byAction(action audit.Action) []*audit.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*audit.Record
	for _, rec := range f.records {
		if rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

type fixture struct {
	svc   *Service
	store *fakeTaskStore
	rec   *fakeRecorder

	rootOrg  string
	childOrg string
	otherOrg string

	rootOwner  *auth.Identity
	rootAdmin  *auth.Identity
	childAdmin *auth.Identity
	viewer     *auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rootID, childID, otherID := "org-root", "org-child", "org-other"
	orgs := &fakeOrgStore{orgs: map[string]*auth.Organization{
		rootID:  {ID: rootID, Name: "Root"},
		childID: {ID: childID, Name: "Child", ParentID: &rootID},
		otherID: {ID: otherID, Name: "Other"},
	}}
	eval, err := auth.NewEvaluator(orgs)
	require.NoError(t, err)

	store := newFakeTaskStore()
	rec := &fakeRecorder{}
	svc, err := NewService(store, eval, rec)
	require.NoError(t, err)

	return &fixture{
		svc:        svc,
		store:      store,
		rec:        rec,
		rootOrg:    rootID,
		childOrg:   childID,
		otherOrg:   otherID,
		rootOwner:  &auth.Identity{ID: "u-owner", Username: "owner", Role: auth.RoleOwner, OrganizationID: rootID},
		rootAdmin:  &auth.Identity{ID: "u-admin", Username: "admin", Role: auth.RoleAdmin, OrganizationID: rootID},
		childAdmin: &auth.Identity{ID: "u-child", Username: "child-admin", Role: auth.RoleAdmin, OrganizationID: childID},
		viewer:     &auth.Identity{ID: "u-viewer", Username: "viewer", Role: auth.RoleViewer, OrganizationID: rootID},
	}
}

func TestCreateTask(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "Deploy"}, auth.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, task.Status, "status defaults to todo")
	assert.Equal(t, CategoryOther, task.Category, "category defaults to other")
	assert.Equal(t, fx.rootOrg, task.OrganizationID, "task lands in the caller's organization")
	assert.Equal(t, fx.rootAdmin.ID, task.CreatedByID)

	created := fx.rec.byAction(audit.ActionCreate)
	require.Len(t, created, 1)
	assert.Equal(t, task.ID, created[0].ResourceID)
}

func TestCreateTaskDeniedForViewer(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Create(context.Background(), fx.viewer, CreateInput{Title: "Deploy"}, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrInsufficientRole)

	denied := fx.rec.byAction(audit.ActionAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, fx.viewer.ID, denied[0].ActorID)
}

func TestCreateTaskValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{}, auth.RequestMeta{})
	assert.Error(t, err, "title is required")

	_, err = fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "x", Status: "archived"}, auth.RequestMeta{})
	assert.Error(t, err)

	_, err = fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "x", Category: "finance"}, auth.RequestMeta{})
	assert.Error(t, err)
}

func TestListSpansChildOrganizationsForOwner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	rootTask, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "Root task"}, auth.RequestMeta{})
	require.NoError(t, err)
	childTask, err := fx.svc.Create(ctx, fx.childAdmin, CreateInput{Title: "Child task"}, auth.RequestMeta{})
	require.NoError(t, err)

	list, err := fx.svc.List(ctx, fx.rootOwner, auth.RequestMeta{})
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, task := range list {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{rootTask.ID, childTask.ID}, ids,
		"owner's listing covers the child organization")

	list, err = fx.svc.List(ctx, fx.rootAdmin, auth.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rootTask.ID, list[0].ID, "admin's listing stays in its own organization")

	reads := fx.rec.byAction(audit.ActionRead)
	assert.Len(t, reads, 2, "each listing leaves one read record")
}

func TestGetEnforcesReachability(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	childTask, err := fx.svc.Create(ctx, fx.childAdmin, CreateInput{Title: "Child task"}, auth.RequestMeta{})
	require.NoError(t, err)

	got, err := fx.svc.Get(ctx, fx.rootOwner, childTask.ID, auth.RequestMeta{})
	require.NoError(t, err, "owner reaches down one level")
	assert.Equal(t, childTask.ID, got.ID)

	_, err = fx.svc.Get(ctx, fx.rootAdmin, childTask.ID, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrOrganizationAccessDenied)

	denied := fx.rec.byAction(audit.ActionAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, fx.rootAdmin.ID, denied[0].ActorID)
	assert.Equal(t, childTask.ID, denied[0].ResourceID)

	_, err = fx.svc.Get(ctx, fx.rootOwner, "no-such-task", auth.RequestMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTask(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "Deploy"}, auth.RequestMeta{})
	require.NoError(t, err)

	title := "Deploy v2"
	status := StatusInProgress
	order := 3
	updated, err := fx.svc.Update(ctx, fx.rootAdmin, task.ID, UpdateInput{
		Title:  &title,
		Status: &status,
		Order:  &order,
	}, auth.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Deploy v2", updated.Title)
	assert.Equal(t, StatusInProgress, updated.Status)
	assert.Equal(t, 3, updated.Order)

	_, err = fx.svc.Update(ctx, fx.viewer, task.ID, UpdateInput{Title: &title}, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrInsufficientRole, "viewer cannot update")

	bad := Status("archived")
	_, err = fx.svc.Update(ctx, fx.rootAdmin, task.ID, UpdateInput{Status: &bad}, auth.RequestMeta{})
	assert.Error(t, err)
}

func TestDeleteRules(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	adminTask, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "Mine"}, auth.RequestMeta{})
	require.NoError(t, err)
	otherAdmin := &auth.Identity{ID: "u-admin-2", Role: auth.RoleAdmin, OrganizationID: fx.rootOrg}
	othersTask, err := fx.svc.Create(ctx, otherAdmin, CreateInput{Title: "Theirs"}, auth.RequestMeta{})
	require.NoError(t, err)

	err = fx.svc.Delete(ctx, fx.rootAdmin, othersTask.ID, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrInsufficientRole, "admin cannot delete another admin's task")

	err = fx.svc.Delete(ctx, fx.viewer, adminTask.ID, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrInsufficientRole)

	require.NoError(t, fx.svc.Delete(ctx, fx.rootAdmin, adminTask.ID, auth.RequestMeta{}),
		"admin deletes its own task")
	require.NoError(t, fx.svc.Delete(ctx, fx.rootOwner, othersTask.ID, auth.RequestMeta{}),
		"owner deletes anything in reach")

	deleted := fx.rec.byAction(audit.ActionDelete)
	assert.Len(t, deleted, 2)
	denied := fx.rec.byAction(audit.ActionAccessDenied)
	assert.Len(t, denied, 2)
}

func TestAuditFailureFailsAllowedOperation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.svc.Create(ctx, fx.rootAdmin, CreateInput{Title: "Deploy"}, auth.RequestMeta{})
	require.NoError(t, err)

	fx.rec.fail = assert.AnError
	_, err = fx.svc.Get(ctx, fx.rootAdmin, task.ID, auth.RequestMeta{})
	require.Error(t, err, "an allowed read without a trail record must not succeed")
}

func TestAuditFailureDoesNotMaskDenial(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.svc.Create(ctx, fx.childAdmin, CreateInput{Title: "Child task"}, auth.RequestMeta{})
	require.NoError(t, err)

	var logs bytes.Buffer
	obs.SetOutput(&logs)
	t.Cleanup(func() { obs.SetOutput(os.Stdout) })

	fx.rec.fail = assert.AnError
	_, err = fx.svc.Get(ctx, fx.rootAdmin, task.ID, auth.RequestMeta{})
	assert.ErrorIs(t, err, auth.ErrOrganizationAccessDenied,
		"the denial surfaces even when the trail write fails")
	assert.Contains(t, logs.String(), "audit append failed",
		"a lost denial record is logged")
}
