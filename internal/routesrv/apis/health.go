package apis

import (
	"net/http"
	"strings"

	"github.com/routeplane/routeplane/internal/common/httpx"
)

type healthRsp struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness is independent of adapter health: the process is up.
func liveness(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   healthRsp{Status: "alive"},
	}, nil
}

// Readiness flips to 503 while draining or when an adapter check fails.
func readiness(r *http.Request) (*httpx.Response, error) {
	if handlers.Kernel.Drainer().Draining() {
		return &httpx.Response{
			StatusCode: http.StatusServiceUnavailable,
			Response:   healthRsp{Status: "draining"},
		}, nil
	}

	checks := map[string]string{}
	if handlers.Ready != nil {
		checks = handlers.Ready()
	}
	for name, state := range checks {
		// "info:" entries are diagnostic only and never gate readiness
		if strings.HasPrefix(name, "info:") {
			continue
		}
		if state != "ok" {
			return &httpx.Response{
				StatusCode: http.StatusServiceUnavailable,
				Response:   healthRsp{Status: "not_ready", Checks: checks},
			}, nil
		}
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   healthRsp{Status: "ready", Checks: checks},
	}, nil
}

// Breaker, budget, bulkhead and drainer state for operators.
func resilienceState(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   handlers.Kernel.Snapshot(),
	}, nil
}
