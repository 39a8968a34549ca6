package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/tasks"
)

// callerIdentity returns the identity the auth middleware stored. A
// miss means a route was wired without requireAuth.
func callerIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}
	return identity, true
}

type createTaskRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Category     string     `json:"category"`
	Order        int        `json:"order"`
	DueDate      *time.Time `json:"due_date"`
	AssignedToID *string    `json:"assigned_to_id"`
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.tasks.Create(r.Context(), identity, tasks.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       tasks.Status(req.Status),
		Category:     tasks.Category(req.Category),
		Order:        req.Order,
		DueDate:      req.DueDate,
		AssignedToID: req.AssignedToID,
	}, metaFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	list, err := a.tasks.List(r.Context(), identity, metaFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	task, err := a.tasks.Get(r.Context(), identity, chi.URLParam(r, "id"), metaFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type updateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Category     *string    `json:"category"`
	Order        *int       `json:"order"`
	DueDate      *time.Time `json:"due_date"`
	AssignedToID *string    `json:"assigned_to_id"`
}

func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	in := tasks.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Order:        req.Order,
		DueDate:      req.DueDate,
		AssignedToID: req.AssignedToID,
	}
	if req.Status != nil {
		s := tasks.Status(*req.Status)
		in.Status = &s
	}
	if req.Category != nil {
		c := tasks.Category(*req.Category)
		in.Category = &c
	}

	task, err := a.tasks.Update(r.Context(), identity, chi.URLParam(r, "id"), in, metaFromRequest(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	if err := a.tasks.Delete(r.Context(), identity, chi.URLParam(r, "id"), metaFromRequest(r)); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
