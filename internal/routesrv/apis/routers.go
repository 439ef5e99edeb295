// Package apis wires the HTTP surface of the routing control plane: route
// resolution, route mutations, audit queries and health probes.
package apis

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/httpx"
	"github.com/routeplane/routeplane/internal/routesrv/audit"
	"github.com/routeplane/routeplane/internal/routesrv/mutator"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/resolver"
)

// AuditQuerier is the slice of the audit store the API layer needs.
type AuditQuerier interface {
	History(ctx context.Context, opts audit.QueryOptions) ([]audit.Document, apperrors.Error)
}

// Handlers carries the wired services the API layer dispatches to. Ready
// reports per-adapter connectivity as "ok" or an error string.
type Handlers struct {
	Resolver *resolver.Resolver
	Mutator  *mutator.Mutator
	Audit    AuditQuerier
	Kernel   *resilience.Kernel
	Ready    func() map[string]string
}

var handlers *Handlers

// Router mounts the API routes. Setup is process-wide; the handler set is
// installed once at startup.
func Router(r chi.Router, h *Handlers) {
	handlers = h

	routeHandlers := []httpx.ResponseHandlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/routes/resolve",
			Handler: resolveRoute,
		},
		{
			Method:  http.MethodPost,
			Path:    "/routes",
			Handler: createRoute,
		},
		{
			Method:  http.MethodPost,
			Path:    "/routes/activate",
			Handler: activateRoute,
		},
		{
			Method:  http.MethodPost,
			Path:    "/routes/deactivate",
			Handler: deactivateRoute,
		},
		{
			Method:  http.MethodGet,
			Path:    "/audit/route",
			Handler: routeAuditHistory,
		},
	}

	for _, handler := range routeHandlers {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}

// HealthRouter mounts the liveness, readiness and resilience probes at the
// server root, outside the drain gate.
func HealthRouter(r chi.Router, h *Handlers) {
	handlers = h
	r.Method(http.MethodGet, "/health/live", httpx.WrapHttpRsp(liveness))
	r.Method(http.MethodGet, "/health/ready", httpx.WrapHttpRsp(readiness))
	r.Method(http.MethodGet, "/health/resilience", httpx.WrapHttpRsp(resilienceState))
}
