// Package tasks is the resource service the authorization core wraps.
// The service never decides access on task content: only the owning
// organization and the creator feed the checks, and every operation,
// allowed or denied, leaves exactly one audit record.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/obs"
)

var ErrNotFound = errors.New("tasks: not found")

// Status tracks a task through the board columns.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Category is a coarse label for filtering.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryUrgent   Category = "urgent"
	CategoryOther    Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryUrgent, CategoryOther:
		return true
	}
	return false
}

// Task is a tracked work item. OrganizationID and CreatedByID are the
// only fields the access checks read.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         Status     `json:"status"`
	Category       Category   `json:"category"`
	Order          int        `json:"order"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	OrganizationID string     `json:"organization_id"`
	CreatedByID    string     `json:"created_by_id"`
	AssignedToID   *string    `json:"assigned_to_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Store persists tasks.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	ListByOrgs(ctx context.Context, orgIDs []string) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

// Service performs task CRUD behind the access evaluator.
type Service struct {
	store    Store
	eval     *auth.Evaluator
	recorder audit.Recorder
	now      func() time.Time
}

func NewService(store Store, eval *auth.Evaluator, recorder audit.Recorder) (*Service, error) {
	if store == nil {
		return nil, errors.New("tasks: store is required")
	}
	if eval == nil {
		return nil, errors.New("tasks: evaluator is required")
	}
	if recorder == nil {
		return nil, errors.New("tasks: audit recorder is required")
	}
	return &Service{store: store, eval: eval, recorder: recorder, now: time.Now}, nil
}

// CreateInput is the creation request. The owning organization is never
// client-supplied: tasks are created in the caller's organization.
type CreateInput struct {
	Title        string
	Description  string
	Status       Status
	Category     Category
	Order        int
	DueDate      *time.Time
	AssignedToID *string
}

func (s *Service) Create(ctx context.Context, caller *auth.Identity, in CreateInput, meta auth.RequestMeta) (*Task, error) {
	if err := auth.RequireRole(caller.Role, auth.RoleAdmin); err != nil {
		s.recordDenied(ctx, caller, "", "task creation denied", meta)
		return nil, err
	}
	if in.Title == "" {
		return nil, errors.New("tasks: title is required")
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("tasks: unknown status %q", in.Status)
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("tasks: unknown category %q", in.Category)
	}

	task := &Task{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Category:       in.Category,
		Order:          in.Order,
		DueDate:        in.DueDate,
		OrganizationID: caller.OrganizationID,
		CreatedByID:    caller.ID,
		AssignedToID:   in.AssignedToID,
		CreatedAt:      s.now().UTC(),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	if err := s.record(ctx, caller, audit.ActionCreate, task.ID, "created task: "+task.Title, meta); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns tasks from every organization the caller can reach,
// ordered for the board (position, then newest first).
func (s *Service) List(ctx context.Context, caller *auth.Identity, meta auth.RequestMeta) ([]*Task, error) {
	orgIDs, err := s.eval.AccessibleOrgIDs(ctx, caller)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListByOrgs(ctx, orgIDs)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, caller, audit.ActionRead, "", "listed tasks", meta); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, caller *auth.Identity, id string, meta auth.RequestMeta) (*Task, error) {
	task, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.eval.CheckResourceAccess(ctx, caller, task.OrganizationID); err != nil {
		s.recordDenied(ctx, caller, task.ID, "task read denied", meta)
		return nil, err
	}
	if err := s.record(ctx, caller, audit.ActionRead, task.ID, "viewed task: "+task.Title, meta); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateInput patches a task; nil fields are left untouched. Order
// updates carry the board's drag-and-drop position.
type UpdateInput struct {
	Title        *string
	Description  *string
	Status       *Status
	Category     *Category
	Order        *int
	DueDate      *time.Time
	AssignedToID *string
}

func (s *Service) Update(ctx context.Context, caller *auth.Identity, id string, in UpdateInput, meta auth.RequestMeta) (*Task, error) {
	task, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.eval.CheckResourceAccess(ctx, caller, task.OrganizationID); err != nil {
		s.recordDenied(ctx, caller, task.ID, "task update denied", meta)
		return nil, err
	}
	if err := auth.RequireRole(caller.Role, auth.RoleAdmin); err != nil {
		s.recordDenied(ctx, caller, task.ID, "task update denied", meta)
		return nil, err
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, errors.New("tasks: title is required")
		}
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("tasks: unknown status %q", *in.Status)
		}
		task.Status = *in.Status
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return nil, fmt.Errorf("tasks: unknown category %q", *in.Category)
		}
		task.Category = *in.Category
	}
	if in.Order != nil {
		task.Order = *in.Order
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.AssignedToID != nil {
		task.AssignedToID = in.AssignedToID
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	if err := s.record(ctx, caller, audit.ActionUpdate, task.ID, "updated task: "+task.Title, meta); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, caller *auth.Identity, id string, meta auth.RequestMeta) error {
	task, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.eval.CheckResourceAccess(ctx, caller, task.OrganizationID); err != nil {
		s.recordDenied(ctx, caller, task.ID, "task delete denied", meta)
		return err
	}
	if err := auth.CanDelete(caller, auth.Resource{OrganizationID: task.OrganizationID, CreatedByID: task.CreatedByID}); err != nil {
		s.recordDenied(ctx, caller, task.ID, "task delete denied", meta)
		return err
	}
	if err := s.store.Delete(ctx, task.ID); err != nil {
		return err
	}
	return s.record(ctx, caller, audit.ActionDelete, task.ID, "deleted task: "+task.Title, meta)
}

// record writes the trail entry for an allowed operation; its failure
// fails the operation.
func (s *Service) record(ctx context.Context, caller *auth.Identity, action audit.Action, resourceID, details string, meta auth.RequestMeta) error {
	rec := &audit.Record{
		ActorID:      caller.ID,
		Action:       action,
		ResourceType: "task",
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		return fmt.Errorf("tasks: audit write failed: %w", err)
	}
	return nil
}

// recordDenied writes the access_denied entry for a refused operation.
// The denial, not a trail error, is what the caller must see; a failed
// append is logged so a trail outage stays visible.
func (s *Service) recordDenied(ctx context.Context, caller *auth.Identity, resourceID, details string, meta auth.RequestMeta) {
	rec := &audit.Record{
		ActorID:      caller.ID,
		Action:       audit.ActionAccessDenied,
		ResourceType: "task",
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := s.recorder.Append(ctx, rec); err != nil {
		obs.Logger().Error().Err(err).Str("task_id", resourceID).Msg("audit append failed on denied operation")
	}
}
