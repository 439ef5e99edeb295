// Package resolver implements the cache-aside read path. The cache is
// consulted first; on a miss the record store is queried and the outcome is
// written back, positive or negative. Cache failures degrade to store
// lookups, they never fail a resolution on their own.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/db/dberror"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// RouteStore is the slice of the record store the resolver needs.
type RouteStore interface {
	ResolveActiveURL(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error)
}

// RouteCache is the slice of the cache the resolver needs.
type RouteCache interface {
	Get(ctx context.Context, id routecommon.RouteID) (cache.Lookup, apperrors.Error)
	SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error
	SetNegative(ctx context.Context, id routecommon.RouteID) apperrors.Error
}

// Resolver serves route resolutions.
type Resolver struct {
	store   RouteStore
	cache   RouteCache
	kernel  *resilience.Kernel
	metrics *metrics.ResolveMetrics
}

// New wires the resolver. metrics may be nil in tests.
func New(store RouteStore, routeCache RouteCache, kernel *resilience.Kernel, m *metrics.ResolveMetrics) *Resolver {
	return &Resolver{
		store:   store,
		cache:   routeCache,
		kernel:  kernel,
		metrics: m,
	}
}

// Resolve returns the active URL for the route. NotFound results are
// negatively cached with the short TTL; store failures are never cached.
func (r *Resolver) Resolve(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	start := time.Now()
	outcome := metrics.CacheMiss

	url, aerr := r.resolve(ctx, id, &outcome)

	if r.metrics != nil {
		r.metrics.LatencyHistogram.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		status := metrics.StatusSuccess
		if aerr != nil && !errors.Is(aerr, dberror.ErrNotFound) {
			status = metrics.StatusFailure
		}
		r.metrics.RequestsTotal.WithLabelValues(status).Inc()
	}
	return url, aerr
}

func (r *Resolver) resolve(ctx context.Context, id routecommon.RouteID, outcome *string) (string, apperrors.Error) {
	lookup, cerr := r.cacheGet(ctx, id)
	if cerr != nil {
		// degraded mode: the store remains authoritative
		log.Ctx(ctx).Warn().Err(cerr).Str("route", id.String()).Msg("cache unavailable, falling through to record store")
	} else if lookup.Found {
		if lookup.Negative {
			*outcome = metrics.CacheNegative
			r.countCache(metrics.CacheNegative)
			return "", dberror.ErrNotFound.Msg("route not found: " + id.String())
		}
		*outcome = metrics.CacheHit
		r.countCache(metrics.CacheHit)
		return lookup.URL, nil
	} else {
		r.countCache(metrics.CacheMiss)
	}

	url, aerr := r.storeResolve(ctx, id)
	if aerr != nil {
		if errors.Is(aerr, dberror.ErrNotFound) {
			r.countDB(metrics.StatusSuccess)
			// remember the absence, briefly
			r.cacheSetNegative(ctx, id)
			return "", aerr
		}
		r.countDB(metrics.StatusFailure)
		return "", aerr
	}
	r.countDB(metrics.StatusSuccess)

	r.cacheSetPositive(ctx, id, url)
	return url, nil
}

func (r *Resolver) cacheGet(ctx context.Context, id routecommon.RouteID) (cache.Lookup, apperrors.Error) {
	var lookup cache.Lookup
	err := r.kernel.Execute(ctx, resilience.ClassRead, resilience.AdapterRedis, func(ctx context.Context) apperrors.Error {
		var aerr apperrors.Error
		lookup, aerr = r.cache.Get(ctx, id)
		return aerr
	})
	return lookup, err
}

func (r *Resolver) cacheSetPositive(ctx context.Context, id routecommon.RouteID, url string) {
	err := r.kernel.Execute(ctx, resilience.ClassRead, resilience.AdapterRedis, func(ctx context.Context) apperrors.Error {
		return r.cache.SetPositive(ctx, id, url)
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("route", id.String()).Msg("failed to cache resolution")
	}
}

func (r *Resolver) cacheSetNegative(ctx context.Context, id routecommon.RouteID) {
	err := r.kernel.Execute(ctx, resilience.ClassRead, resilience.AdapterRedis, func(ctx context.Context) apperrors.Error {
		return r.cache.SetNegative(ctx, id)
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("route", id.String()).Msg("failed to cache negative entry")
	}
}

func (r *Resolver) storeResolve(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error) {
	var url string
	err := r.kernel.Execute(ctx, resilience.ClassRead, resilience.AdapterPostgres, func(ctx context.Context) apperrors.Error {
		var aerr apperrors.Error
		url, aerr = r.store.ResolveActiveURL(ctx, id)
		return aerr
	})
	return url, err
}

func (r *Resolver) countCache(outcome string) {
	if r.metrics != nil {
		r.metrics.CacheOutcomesTotal.WithLabelValues(outcome).Inc()
	}
}

func (r *Resolver) countDB(status string) {
	if r.metrics != nil {
		r.metrics.DBQueriesTotal.WithLabelValues(status).Inc()
	}
}
