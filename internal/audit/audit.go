// Package audit owns the append-only trail of authentication events and
// access decisions. Records are written synchronously and are never
// mutated or deleted; a failed append fails the enclosing request.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Action classifies an audit record.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionLogin        Action = "login"
	ActionAccessDenied Action = "access_denied"
)

// Record is one immutable audit log entry. ActorID is empty when the
// actor could not be established (failed login for an unknown username).
type Record struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id,omitempty"`
	Action       Action    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recorder appends records to the trail. The write is in the request
// path on purpose: callers decide whether its failure is fatal.
type Recorder interface {
	Append(ctx context.Context, rec *Record) error
}

// Store is the full persistence contract: append plus the scoped query.
type Store interface {
	Recorder
	// ListByActorOrgs returns records whose actor belongs to one of the
	// given organizations, newest first, at most limit entries.
	ListByActorOrgs(ctx context.Context, orgIDs []string, limit int) ([]*Record, error)
}

// queryLimit caps every trail query at the most recent records.
const queryLimit = 1000

// Service answers scoped read queries over the trail.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	return &Service{store: store}, nil
}

// Record appends an entry, filling the timestamp when unset.
func (s *Service) Record(ctx context.Context, rec *Record) error {
	return s.store.Append(ctx, rec)
}

// Query returns the newest records attributed to actors in the given
// organizations. The caller computes the accessible set with the same
// reachability rule used for resource access.
func (s *Service) Query(ctx context.Context, orgIDs []string) ([]*Record, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	return s.store.ListByActorOrgs(ctx, orgIDs, queryLimit)
}

// Describe builds a short human-readable details string.
func Describe(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
