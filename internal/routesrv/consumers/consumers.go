// Package consumers holds the three event handlers that share the route
// event log: cache invalidation, cache warming and the audit writer. Each
// runs in its own consumer group so they progress independently.
package consumers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// Consumer group suffixes; the full group name is prefix + suffix.
const (
	GroupCacheInvalidation = "cache-invalidation"
	GroupCacheWarming      = "cache-warming"
	GroupAuditLog          = "audit-log"
)

// GroupName builds the full consumer group name from configuration.
func GroupName(cfg *config.KafkaConfig, suffix string) string {
	return cfg.ConsumerGroupPrefix + "-" + suffix
}

// RouteCache is the slice of the cache the consumers need.
type RouteCache interface {
	SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error
	Delete(ctx context.Context, id routecommon.RouteID) apperrors.Error
}

// AuditStore is the slice of the audit store the audit writer needs.
type AuditStore interface {
	Insert(ctx context.Context, event eventlog.RouteEvent) (duplicate bool, aerr apperrors.Error)
}

// instrument wraps a handler with per-group metrics. m may be nil in tests.
func instrument(group string, m *metrics.ConsumerMetrics, handler eventlog.Handler) eventlog.Handler {
	if m == nil {
		return handler
	}
	return func(ctx context.Context, event eventlog.RouteEvent) apperrors.Error {
		start := time.Now()
		err := handler(ctx, event)
		m.ProcessingLatency.WithLabelValues(group).Observe(time.Since(start).Seconds())
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailure
		}
		m.EventsProcessedTotal.WithLabelValues(group, status).Inc()
		return err
	}
}

// NewInvalidatorHandler deletes the cache entry for every event. Idempotent
// by construction: deleting an absent key is a no-op.
func NewInvalidatorHandler(group string, routeCache RouteCache, m *metrics.ConsumerMetrics) eventlog.Handler {
	return instrument(group, m, func(ctx context.Context, event eventlog.RouteEvent) apperrors.Error {
		id := event.RouteID()
		if err := routeCache.Delete(ctx, id); err != nil {
			return err
		}
		log.Ctx(ctx).Debug().Str("route", id.String()).Str("event_id", event.EventID).Msg("cache entry invalidated")
		return nil
	})
}

// NewWarmerHandler refreshes the positive cache entry for created and
// activated events and deletes it for deactivated ones. The race with the
// invalidator is benign: the record store stays authoritative and TTLs bound
// staleness.
func NewWarmerHandler(group string, routeCache RouteCache, m *metrics.ConsumerMetrics) eventlog.Handler {
	return instrument(group, m, func(ctx context.Context, event eventlog.RouteEvent) apperrors.Error {
		id := event.RouteID()
		switch event.Action {
		case eventlog.ActionCreated, eventlog.ActionActivated:
			if event.URL == "" {
				log.Ctx(ctx).Warn().Str("event_id", event.EventID).Msg("skipping warm for event without url")
				return nil
			}
			if err := routeCache.SetPositive(ctx, id, event.URL); err != nil {
				return err
			}
			log.Ctx(ctx).Debug().Str("route", id.String()).Str("url", event.URL).Msg("cache entry warmed")
		case eventlog.ActionDeactivated:
			if err := routeCache.Delete(ctx, id); err != nil {
				return err
			}
			log.Ctx(ctx).Debug().Str("route", id.String()).Msg("cache entry removed for deactivated route")
		default:
			log.Ctx(ctx).Warn().Str("action", event.Action).Str("event_id", event.EventID).Msg("ignoring unknown action")
		}
		return nil
	})
}

// NewAuditHandler persists every event as an audit document. Redeliveries
// hit the unique event_id index and are skipped.
func NewAuditHandler(group string, store AuditStore, m *metrics.ConsumerMetrics) eventlog.Handler {
	return instrument(group, m, func(ctx context.Context, event eventlog.RouteEvent) apperrors.Error {
		duplicate, err := store.Insert(ctx, event)
		if err != nil {
			return err
		}
		if m != nil {
			if duplicate {
				m.AuditDuplicatesTotal.Inc()
			} else {
				m.AuditInsertedTotal.Inc()
			}
		}
		return nil
	})
}
