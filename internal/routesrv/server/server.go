// Package server assembles the HTTP server: middleware stack, API routes,
// health probes and the metrics endpoint.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/httpx"
	commonmiddleware "github.com/routeplane/routeplane/internal/common/middleware"
	"github.com/routeplane/routeplane/internal/routesrv/apis"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
)

type RouteServer struct {
	Router   *chi.Mux
	handlers *apis.Handlers
}

func CreateNewServer(h *apis.Handlers) *RouteServer {
	return &RouteServer{
		Router:   chi.NewRouter(),
		handlers: h,
	}
}

// MountHandlers installs the middleware stack and routes. Health probes and
// metrics sit outside the drain gate so they keep answering during
// shutdown; the API surface sits behind it.
func (s *RouteServer) MountHandlers() {
	s.Router.Use(commonmiddleware.CorrelationTracker)
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)

	apis.HealthRouter(s.Router, s.handlers)
	s.Router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.drainGate)
		apis.Router(r, s.handlers)
	})
}

// drainGate admits a request into the drainer for its whole lifetime. Once
// draining starts, new requests are rejected with 503 while in-flight ones
// run to completion.
func (s *RouteServer) drainGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done, err := s.handlers.Kernel.Drainer().Enter()
		if err != nil {
			log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("request rejected, server is draining")
			httpx.SendError(w, r, resilience.ErrDraining)
			return
		}
		defer done()
		next.ServeHTTP(w, r)
	})
}
