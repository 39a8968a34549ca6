package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// operation declares the access requirements of one protected endpoint.
// The route table passes these explicitly; no metadata is discovered at
// runtime.
type operation struct {
	Name     string
	Resource string
	MinRole  auth.Role
}

var (
	opOrgCreate = operation{Name: "organization.create", Resource: "organization", MinRole: auth.RoleOwner}
	opTaskRead  = operation{Name: "task.read", Resource: "task", MinRole: auth.RoleViewer}
	opTaskWrite = operation{Name: "task.write", Resource: "task", MinRole: auth.RoleViewer}
	opAuditList = operation{Name: "audit.list", Resource: "audit_log", MinRole: auth.RoleViewer}
	opChat      = operation{Name: "chatbot.chat", Resource: "chatbot", MinRole: auth.RoleViewer}
)

// requireAuth resolves the bearer token and enforces the operation's
// minimum role before the handler runs. Fine-grained rules (deletion
// ownership, organization reach of a concrete resource) stay in the
// services, which see the loaded resource.
func (a *API) requireAuth(op operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r.Header.Get(authHeader))
			if err != nil {
				a.recordDenied(r, "", op, "missing bearer token")
				writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				return
			}

			identity, err := a.sessions.ValidateAndAuthorize(r.Context(), token, op.MinRole, nil)
			if err != nil {
				// A role denial still resolved the caller; attribute it.
				actorID := ""
				if identity != nil {
					actorID = identity.ID
				}
				switch {
				case errors.Is(err, auth.ErrInsufficientRole):
					a.recordDenied(r, actorID, op, "insufficient role")
					writeError(w, r, http.StatusForbidden, "forbidden")
				case errors.Is(err, auth.ErrTokenExpired):
					a.recordDenied(r, actorID, op, "token expired")
					writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrIdentityNotFound):
					a.recordDenied(r, actorID, op, "invalid token")
					writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				default:
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recordDenied writes the forensic record for a request refused before
// it reached a service. The denial response is sent regardless of the
// trail write outcome.
func (a *API) recordDenied(r *http.Request, actorID string, op operation, details string) {
	meta := metaFromRequest(r)
	rec := &audit.Record{
		ActorID:      actorID,
		Action:       audit.ActionAccessDenied,
		ResourceType: op.Resource,
		Details:      audit.Describe(op.Name, details),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if err := a.recorder.Append(r.Context(), rec); err != nil {
		obs.Logger().Error().Err(err).Str("operation", op.Name).Msg("audit append failed on denied request")
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func metaFromRequest(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
