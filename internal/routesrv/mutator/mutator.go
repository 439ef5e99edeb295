// Package mutator implements the route write path: validated, idempotent
// mutations against the record store with a best-effort change event
// published after commit. A publish failure is logged and counted; it never
// fails the write.
package mutator

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/correlation"
	"github.com/routeplane/routeplane/internal/routesrv/db/models"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// ErrInvalidURL rejects malformed endpoint URLs before any store work.
var ErrInvalidURL = apperrors.New("invalid endpoint url").SetStatusCode(http.StatusBadRequest)

// RouteWriter is the slice of the record store the mutator needs.
type RouteWriter interface {
	CreateRoute(ctx context.Context, id routecommon.RouteID, url string) (*models.MutationResult, apperrors.Error)
	ActivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error)
	DeactivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error)
}

// EventPublisher is the slice of the event log the mutator needs.
type EventPublisher interface {
	Publish(ctx context.Context, event eventlog.RouteEvent) apperrors.Error
}

// Result is what the API layer returns for a successful mutation.
type Result struct {
	Route    routecommon.RouteID `json:"route"`
	URL      string              `json:"url"`
	IsActive bool                `json:"is_active"`
}

// Mutator serves the write path.
type Mutator struct {
	store     RouteWriter
	publisher EventPublisher
	kernel    *resilience.Kernel
	metrics   *metrics.WriteMetrics
}

// New wires the mutator. publisher and metrics may be nil in tests.
func New(store RouteWriter, publisher EventPublisher, kernel *resilience.Kernel, m *metrics.WriteMetrics) *Mutator {
	return &Mutator{
		store:     store,
		publisher: publisher,
		kernel:    kernel,
		metrics:   m,
	}
}

// Create registers a route and activates it. Idempotent: repeating the same
// create succeeds without a second event.
func (m *Mutator) Create(ctx context.Context, id routecommon.RouteID, endpointURL, changedBy string) (*Result, apperrors.Error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := validateURL(endpointURL); err != nil {
		return nil, err
	}

	result, aerr := m.mutate(ctx, "create", eventlog.ActionCreated, changedBy, func(ctx context.Context) (*models.MutationResult, apperrors.Error) {
		return m.store.CreateRoute(ctx, id, endpointURL)
	}, id)
	if aerr != nil {
		return nil, aerr
	}
	return &Result{Route: id, URL: result.URL, IsActive: true}, nil
}

// Activate marks the route active. Idempotent on already-active routes.
func (m *Mutator) Activate(ctx context.Context, id routecommon.RouteID, changedBy string) (*Result, apperrors.Error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	result, aerr := m.mutate(ctx, "activate", eventlog.ActionActivated, changedBy, func(ctx context.Context) (*models.MutationResult, apperrors.Error) {
		return m.store.ActivateRoute(ctx, id)
	}, id)
	if aerr != nil {
		return nil, aerr
	}
	return &Result{Route: id, URL: result.URL, IsActive: true}, nil
}

// Deactivate marks the route inactive. Idempotent on already-inactive
// routes.
func (m *Mutator) Deactivate(ctx context.Context, id routecommon.RouteID, changedBy string) (*Result, apperrors.Error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	result, aerr := m.mutate(ctx, "deactivate", eventlog.ActionDeactivated, changedBy, func(ctx context.Context) (*models.MutationResult, apperrors.Error) {
		return m.store.DeactivateRoute(ctx, id)
	}, id)
	if aerr != nil {
		return nil, aerr
	}
	return &Result{Route: id, URL: result.URL, IsActive: false}, nil
}

func (m *Mutator) mutate(ctx context.Context, action, eventAction, changedBy string, op func(ctx context.Context) (*models.MutationResult, apperrors.Error), id routecommon.RouteID) (*models.MutationResult, apperrors.Error) {
	start := time.Now()

	var result *models.MutationResult
	aerr := m.kernel.Execute(ctx, resilience.ClassWrite, resilience.AdapterPostgres, func(ctx context.Context) apperrors.Error {
		var err apperrors.Error
		result, err = op(ctx)
		return err
	})

	if m.metrics != nil {
		status := metrics.StatusSuccess
		if aerr != nil {
			status = metrics.StatusFailure
		}
		m.metrics.OperationsTotal.WithLabelValues(action, status).Inc()
		m.metrics.LatencyHistogram.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
	if aerr != nil {
		return nil, aerr
	}

	if result.Changed {
		m.publishEvent(ctx, eventAction, id, result, changedBy)
	}
	return result, nil
}

// publishEvent runs after the transaction has committed. Failures are
// absorbed here: the record store is already correct and consumers converge
// via TTLs.
func (m *Mutator) publishEvent(ctx context.Context, action string, id routecommon.RouteID, result *models.MutationResult, changedBy string) {
	if m.publisher == nil {
		return
	}

	event := eventlog.NewRouteEvent(
		action, id, result.URL,
		result.Previous.URL,
		result.Previous.PreviousStateLabel(),
		changedBy,
		correlation.FromContext(ctx),
	)
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("route", id.String()).
			Str("action", action).
			Msg("route event publish failed after commit")
		if m.metrics != nil {
			m.metrics.EventsFailedTotal.Inc()
		}
		return
	}
	if m.metrics != nil {
		m.metrics.EventsPublishedTotal.Inc()
	}
}

func validateURL(raw string) apperrors.Error {
	if raw == "" {
		return ErrInvalidURL.Msg("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidURL.Msg("url must be absolute with scheme and host")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL.Msg("url scheme must be http or https")
	}
	return nil
}
