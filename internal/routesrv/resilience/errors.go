// Package resilience provides the circuit breakers, retry budgets, bulkheads
// and the graceful drainer shared by every adapter in the service. The
// primitives compose in a fixed order: drain gate, bulkhead, breaker, then the
// budget-gated retry around the adapter call itself.
package resilience

import (
	"net/http"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// Load-shedding signals. All map to 503 so callers know a retry later may
// succeed.
var (
	ErrCircuitOpen         = apperrors.New("circuit breaker is open").SetStatusCode(http.StatusServiceUnavailable)
	ErrBulkheadFull        = apperrors.New("concurrency limit reached").SetStatusCode(http.StatusServiceUnavailable)
	ErrRetryBudgetExceeded = apperrors.New("retry budget exhausted").SetStatusCode(http.StatusServiceUnavailable)
	ErrDraining            = apperrors.New("server is draining").SetStatusCode(http.StatusServiceUnavailable)
	ErrUnavailable         = apperrors.New("dependency unavailable").SetStatusCode(http.StatusServiceUnavailable)
)

// ErrTransient classifies adapter failures that are safe to retry. Adapters
// wrap timeouts and connection errors with it; anything else is surfaced
// as-is without retry.
var ErrTransient = apperrors.New("transient dependency failure").SetStatusCode(http.StatusServiceUnavailable)
