package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/db/dberror"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

type fakeStore struct {
	urls    map[string]string
	err     apperrors.Error
	queries int
}

func (s *fakeStore) ResolveActiveURL(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error) {
	s.queries++
	if s.err != nil {
		return "", s.err
	}
	url, ok := s.urls[id.String()]
	if !ok {
		return "", dberror.ErrNotFound.Msg("route not found")
	}
	return url, nil
}

type fakeCache struct {
	entries   map[string]string
	getErr    apperrors.Error
	setErr    apperrors.Error
	positives int
	negatives int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, id routecommon.RouteID) (cache.Lookup, apperrors.Error) {
	if c.getErr != nil {
		return cache.Lookup{}, c.getErr
	}
	val, ok := c.entries[id.CacheKey()]
	if !ok {
		return cache.Lookup{}, nil
	}
	if val == routecommon.NegativeCacheValue {
		return cache.Lookup{Found: true, Negative: true}, nil
	}
	return cache.Lookup{Found: true, URL: val}, nil
}

func (c *fakeCache) SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[id.CacheKey()] = url
	c.positives++
	return nil
}

func (c *fakeCache) SetNegative(ctx context.Context, id routecommon.RouteID) apperrors.Error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[id.CacheKey()] = routecommon.NegativeCacheValue
	c.negatives++
	return nil
}

func testKernel() *resilience.Kernel {
	cfg := &config.ResilienceConfig{
		Default:           config.BreakerConfig{FailureThreshold: 3, WindowSeconds: 60, OpenTimeout: 30, MinCalls: 3},
		Redis:             config.BreakerConfig{FailureThreshold: 5, WindowSeconds: 30, OpenTimeout: 30, MinCalls: 3},
		RetryBudget:       10,
		RetryWindow:       60,
		ReadConcurrency:   8,
		WriteConcurrency:  4,
		AuditConcurrency:  2,
		BulkheadWaitMilli: 50,
	}
	return resilience.NewKernel(cfg, nil)
}

var testID = routecommon.RouteID{Tenant: "team-a", Service: "payments", Env: "prod", Version: "v2"}

func TestResolveCacheHit(t *testing.T) {
	store := &fakeStore{urls: map[string]string{}}
	fc := newFakeCache()
	fc.entries[testID.CacheKey()] = "https://p/v2"
	r := New(store, fc, testKernel(), nil)

	url, err := r.Resolve(context.Background(), testID)
	require.Nil(t, err)
	assert.Equal(t, "https://p/v2", url)
	assert.Equal(t, 0, store.queries)
}

func TestResolveNegativeCacheHit(t *testing.T) {
	store := &fakeStore{urls: map[string]string{testID.String(): "https://p/v2"}}
	fc := newFakeCache()
	fc.entries[testID.CacheKey()] = routecommon.NegativeCacheValue
	r := New(store, fc, testKernel(), nil)

	_, err := r.Resolve(context.Background(), testID)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.Equal(t, 0, store.queries)
}

func TestResolveMissPopulatesCache(t *testing.T) {
	store := &fakeStore{urls: map[string]string{testID.String(): "https://p/v2"}}
	fc := newFakeCache()
	r := New(store, fc, testKernel(), nil)

	url, err := r.Resolve(context.Background(), testID)
	require.Nil(t, err)
	assert.Equal(t, "https://p/v2", url)
	assert.Equal(t, 1, store.queries)
	assert.Equal(t, "https://p/v2", fc.entries[testID.CacheKey()])

	// second resolve is served from cache
	url, err = r.Resolve(context.Background(), testID)
	require.Nil(t, err)
	assert.Equal(t, "https://p/v2", url)
	assert.Equal(t, 1, store.queries)
}

func TestResolveNotFoundWritesNegativeEntry(t *testing.T) {
	store := &fakeStore{urls: map[string]string{}}
	fc := newFakeCache()
	r := New(store, fc, testKernel(), nil)

	_, err := r.Resolve(context.Background(), testID)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.Equal(t, routecommon.NegativeCacheValue, fc.entries[testID.CacheKey()])
	assert.Equal(t, 1, fc.negatives)

	// the negative entry short-circuits the next lookup
	_, err = r.Resolve(context.Background(), testID)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.Equal(t, 1, store.queries)
}

func TestResolveCacheFailureFallsThroughToStore(t *testing.T) {
	store := &fakeStore{urls: map[string]string{testID.String(): "https://p/v2"}}
	fc := newFakeCache()
	fc.getErr = cache.ErrCache.Msg("boom")
	r := New(store, fc, testKernel(), nil)

	url, err := r.Resolve(context.Background(), testID)
	require.Nil(t, err)
	assert.Equal(t, "https://p/v2", url)
	assert.Equal(t, 1, store.queries)
}

func TestResolveStoreFailureIsNotNegativelyCached(t *testing.T) {
	store := &fakeStore{err: dberror.ErrDatabase.Msg("db down")}
	fc := newFakeCache()
	r := New(store, fc, testKernel(), nil)

	_, err := r.Resolve(context.Background(), testID)
	require.NotNil(t, err)
	assert.NotErrorIs(t, err, dberror.ErrNotFound)
	assert.Equal(t, 0, fc.negatives)
	assert.Empty(t, fc.entries)
}

func TestResolveInvalidID(t *testing.T) {
	r := New(&fakeStore{}, newFakeCache(), testKernel(), nil)
	_, err := r.Resolve(context.Background(), routecommon.RouteID{Tenant: "t"})
	require.NotNil(t, err)
	assert.ErrorIs(t, err, routecommon.ErrInvalidRouteID)
}

func TestResolveCacheHitSurvivesStoreOutage(t *testing.T) {
	store := &fakeStore{err: resilience.ErrTransient.Msg("db down")}
	fc := newFakeCache()
	fc.entries[testID.CacheKey()] = "https://p/v2"
	r := New(store, fc, testKernel(), nil)

	url, err := r.Resolve(context.Background(), testID)
	require.Nil(t, err)
	assert.Equal(t, "https://p/v2", url)
}
