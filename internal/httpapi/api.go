// Package httpapi is the HTTP surface of the service. Handlers stay
// thin: authentication and the coarse role check run in middleware
// declared per route, everything finer lives in the services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"tasktrail.org/internal/audit"
	"tasktrail.org/internal/auth"
	"tasktrail.org/internal/chatbot"
	"tasktrail.org/internal/obs"
	"tasktrail.org/internal/tasks"
)

// Sessions issues and validates credentials.
type Sessions interface {
	Authenticate(ctx context.Context, username, password string, meta auth.RequestMeta) (auth.Session, error)
	Register(ctx context.Context, in auth.RegisterInput, meta auth.RequestMeta) (auth.Session, error)
	ValidateAndAuthorize(ctx context.Context, token string, required auth.Role, res *auth.Resource) (*auth.Identity, error)
}

// Directory manages the organization hierarchy.
type Directory interface {
	CreateOrganization(ctx context.Context, name string, parentID *string) (*auth.Organization, error)
	ListOrganizations(ctx context.Context) ([]*auth.Organization, error)
}

// TaskService is the access-controlled resource service.
type TaskService interface {
	Create(ctx context.Context, caller *auth.Identity, in tasks.CreateInput, meta auth.RequestMeta) (*tasks.Task, error)
	List(ctx context.Context, caller *auth.Identity, meta auth.RequestMeta) ([]*tasks.Task, error)
	Get(ctx context.Context, caller *auth.Identity, id string, meta auth.RequestMeta) (*tasks.Task, error)
	Update(ctx context.Context, caller *auth.Identity, id string, in tasks.UpdateInput, meta auth.RequestMeta) (*tasks.Task, error)
	Delete(ctx context.Context, caller *auth.Identity, id string, meta auth.RequestMeta) error
}

// AuditQueries reads the trail within an organization scope.
type AuditQueries interface {
	Query(ctx context.Context, orgIDs []string) ([]*audit.Record, error)
}

// Chatter proxies the generative assistant.
type Chatter interface {
	GenerateReply(ctx context.Context, req chatbot.Request) (string, error)
}

// ReadyProbe checks dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the HTTP-layer knobs.
type Config struct {
	Version            string
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
	AllowedOrigins     []string
}

// API wires handlers, middleware and routes.
type API struct {
	router     chi.Router
	sessions   Sessions
	directory  Directory
	tasks      TaskService
	auditLog   AuditQueries
	eval       *auth.Evaluator
	recorder   audit.Recorder
	chat       Chatter
	readyProbe ReadyProbe
	version    string
}

func New(
	sessions Sessions,
	directory Directory,
	taskSvc TaskService,
	auditLog AuditQueries,
	eval *auth.Evaluator,
	recorder audit.Recorder,
	chat Chatter,
	rp ReadyProbe,
	cfg Config,
) *API {
	a := &API{
		router:     chi.NewRouter(),
		sessions:   sessions,
		directory:  directory,
		tasks:      taskSvc,
		auditLog:   auditLog,
		eval:       eval,
		recorder:   recorder,
		chat:       chat,
		readyProbe: rp,
		version:    cfg.Version,
	}

	r := a.router
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(obs.Instrument)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           600,
	}))
	if cfg.RateLimitPerSecond > 0 {
		r.Use(RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(MaxBodyBytes(cfg.MaxBodyBytes))
	}

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Get("/v1/info", a.handleInfo)
	r.Handle("/metrics", obs.Handler())

	// Public operations: registration, login, organization listing.
	r.Post("/v1/auth/register", a.handleRegister)
	r.Post("/v1/auth/login", a.handleLogin)
	r.Get("/v1/organizations", a.handleListOrganizations)

	// Everything below requires a bearer token.
	r.With(a.requireAuth(opOrgCreate)).Post("/v1/organizations", a.handleCreateOrganization)
	r.With(a.requireAuth(opTaskRead)).Get("/v1/tasks", a.handleListTasks)
	r.With(a.requireAuth(opTaskWrite)).Post("/v1/tasks", a.handleCreateTask)
	r.With(a.requireAuth(opTaskRead)).Get("/v1/tasks/{id}", a.handleGetTask)
	r.With(a.requireAuth(opTaskWrite)).Patch("/v1/tasks/{id}", a.handleUpdateTask)
	r.With(a.requireAuth(opTaskWrite)).Delete("/v1/tasks/{id}", a.handleDeleteTask)
	r.With(a.requireAuth(opAuditList)).Get("/v1/audit-logs", a.handleListAuditLogs)
	r.With(a.requireAuth(opChat)).Post("/v1/chatbot/chat", a.handleChat)

	return a
}

// Handler returns the root handler.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tasktrail-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tasktrail-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
