package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artevida/askql/internal/auth"
	"github.com/artevida/askql/internal/config"
	"github.com/artevida/askql/internal/conversation"
	"github.com/artevida/askql/internal/observability"
	"github.com/artevida/askql/internal/pipeline"
	"github.com/artevida/askql/internal/query"
	"github.com/artevida/askql/internal/sqlguard"
)

type ReadinessCheck func(ctx context.Context) error

// Asker answers one question. *pipeline.Orchestrator satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string, turns []conversation.Turn) (pipeline.Answer, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Asker             Asker
	Validator         *sqlguard.Validator
	// Engine runs the fixed widget queries after they pass Validator.
	Engine      query.Engine
	RateLimiter *RateLimiter
}

type server struct {
	deps Dependencies
	// hideInternal replaces INTERNAL_ERROR messages with a generic text.
	hideInternal bool
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	s := &server{deps: deps, hideInternal: cfg.Profile == config.ProfileProd}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "dependencies are not ready", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	asker := auth.RequireRole(auth.RoleAsker)
	linter := auth.RequireRole(auth.RoleLinter)

	routes := map[string]http.Handler{
		"POST /v1/ask":               asker(deps.RateLimiter.Middleware(http.HandlerFunc(s.handleAsk))),
		"POST /v1/sql/validate":      linter(http.HandlerFunc(s.handleValidate)),
		"GET /v1/widgets/kpis":       asker(http.HandlerFunc(s.handleKPIs)),
		"GET /v1/widgets/sales":      asker(http.HandlerFunc(s.handleSales)),
		"GET /v1/widgets/ratings":    asker(http.HandlerFunc(s.handleRatings)),
		"GET /v1/widgets/top-cities": asker(http.HandlerFunc(s.handleTopCities)),
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.Handle(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckDatabase reports the database as not ready when ping fails.
func CheckDatabase(ping func(ctx context.Context) error) ReadinessCheck {
	if ping == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.New("query engine is unavailable: " + err.Error())
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"error":    message,
		"code":     code,
		"details":  details,
		"trace_id": observability.TraceIDFromContext(ctx),
	})
}

// writeInternal logs err and answers 500 INTERNAL_ERROR. The error text is
// only echoed outside the prod profile.
func (s *server) writeInternal(r *http.Request, w http.ResponseWriter, message string, err error) {
	if s.deps.Logger != nil {
		observability.LoggerFromContext(r.Context(), s.deps.Logger).ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	var details any
	if !s.hideInternal && err != nil {
		details = err.Error()
	}
	if s.hideInternal {
		message = "internal server error"
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", message, details)
}
