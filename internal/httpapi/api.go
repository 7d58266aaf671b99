// Package httpapi is the HTTP surface of the admin service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"kassabook.org/internal/adminauth"
	"kassabook.org/internal/audit"
	"kassabook.org/internal/dataquality"
	"kassabook.org/internal/obs"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries the services the API exposes.
type Deps struct {
	DB       *sql.DB
	Auth     *adminauth.Service
	Quality  *dataquality.Service
	Logs     audit.EntryStore
	Recorder *audit.Recorder
	Logger   *zap.Logger
	Version  string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	auth       *adminauth.Service
	quality    *dataquality.Service
	logs       audit.EntryStore
	recorder   *audit.Recorder
	log        *zap.Logger
	version    string
}

func New(d Deps) *API {
	logger := d.Logger
	if logger == nil {
		logger = obs.Logger()
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: ReadyProbe{DB: d.DB},
		auth:       d.Auth,
		quality:    d.Quality,
		logs:       d.Logs,
		recorder:   d.Recorder,
		log:        logger,
		version:    d.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/admin/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/admin/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/admin/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/admin/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/admin/v1/auth/password", a.handlePasswordChange)
	a.mux.HandleFunc("/admin/v1/auth/mfa/enable", a.handleMFAEnable)
	a.mux.HandleFunc("/admin/v1/auth/mfa/disable", a.handleMFADisable)

	a.mux.HandleFunc("/admin/v1/operators", a.handleOperators)
	a.mux.HandleFunc("/admin/v1/operators/", a.handleOperatorResource)

	a.mux.HandleFunc("/admin/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/admin/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/admin/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/admin/v1/logs", a.handleLogs)

	a.mux.HandleFunc("/admin/v1/data-quality", a.handleQualityChecks)
	a.mux.HandleFunc("/admin/v1/data-quality/", a.handleQualityResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

const maxRequestBody = 1 << 20

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, maxRequestBody)
	h = RateLimit(h, 20, 10)
	h = Logging(a.log, h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kassabook-admin",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
