package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/tasks"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// decodeJSON reads a single strict JSON document from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps the error taxonomy to HTTP statuses. All
// authentication failures collapse to one 401 and all authorization
// failures to one 403, so clients learn nothing beyond the category;
// the specific reason lives in the audit trail.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrIdentityNotFound):
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, auth.ErrInsufficientRole),
		errors.Is(err, auth.ErrOrganizationAccessDenied):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, r, http.StatusConflict, "username already exists")
	case errors.Is(err, auth.ErrDuplicateOrganization):
		writeError(w, r, http.StatusConflict, "organization already exists")
	case errors.Is(err, auth.ErrOrganizationNotFound):
		writeError(w, r, http.StatusNotFound, "organization not found")
	case errors.Is(err, tasks.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "task not found")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
