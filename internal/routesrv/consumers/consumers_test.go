package consumers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/eventlog"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

type fakeCache struct {
	entries map[string]string
	err     apperrors.Error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error {
	if c.err != nil {
		return c.err
	}
	c.entries[id.CacheKey()] = url
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, id routecommon.RouteID) apperrors.Error {
	if c.err != nil {
		return c.err
	}
	delete(c.entries, id.CacheKey())
	return nil
}

type fakeAudit struct {
	seen map[string]eventlog.RouteEvent
	err  apperrors.Error
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{seen: map[string]eventlog.RouteEvent{}}
}

func (a *fakeAudit) Insert(ctx context.Context, event eventlog.RouteEvent) (bool, apperrors.Error) {
	if a.err != nil {
		return false, a.err
	}
	if _, ok := a.seen[event.EventID]; ok {
		return true, nil
	}
	a.seen[event.EventID] = event
	return false, nil
}

var testID = routecommon.RouteID{Tenant: "team-a", Service: "payments", Env: "prod", Version: "v2"}

func TestGroupName(t *testing.T) {
	cfg := &config.KafkaConfig{ConsumerGroupPrefix: "routeplane"}
	assert.Equal(t, "routeplane-cache-invalidation", GroupName(cfg, GroupCacheInvalidation))
	assert.Equal(t, "routeplane-cache-warming", GroupName(cfg, GroupCacheWarming))
	assert.Equal(t, "routeplane-audit-log", GroupName(cfg, GroupAuditLog))
}

func TestInvalidatorDeletesEntry(t *testing.T) {
	fc := newFakeCache()
	fc.entries[testID.CacheKey()] = "https://p/v2"
	h := NewInvalidatorHandler("g", fc, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionCreated, testID, "https://p/v2", "", "", "", "")
	require.Nil(t, h(context.Background(), event))
	assert.NotContains(t, fc.entries, testID.CacheKey())

	// deleting again is a no-op
	require.Nil(t, h(context.Background(), event))
}

func TestWarmerWritesPositiveEntry(t *testing.T) {
	fc := newFakeCache()
	h := NewWarmerHandler("g", fc, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionActivated, testID, "https://p/v2", "", "inactive", "", "")
	require.Nil(t, h(context.Background(), event))
	assert.Equal(t, "https://p/v2", fc.entries[testID.CacheKey()])
}

func TestWarmerDeletesOnDeactivate(t *testing.T) {
	fc := newFakeCache()
	fc.entries[testID.CacheKey()] = "https://p/v2"
	h := NewWarmerHandler("g", fc, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionDeactivated, testID, "https://p/v2", "", "active", "", "")
	require.Nil(t, h(context.Background(), event))
	assert.NotContains(t, fc.entries, testID.CacheKey())
}

func TestWarmerSkipsEmptyURL(t *testing.T) {
	fc := newFakeCache()
	h := NewWarmerHandler("g", fc, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionCreated, testID, "", "", "", "", "")
	require.Nil(t, h(context.Background(), event))
	assert.Empty(t, fc.entries)
}

func TestWarmerPropagatesCacheFailure(t *testing.T) {
	fc := newFakeCache()
	fc.err = cache.ErrCache.Msg("redis down")
	h := NewWarmerHandler("g", fc, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionCreated, testID, "https://p/v2", "", "", "", "")
	err := h(context.Background(), event)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cache.ErrCache)
}

func TestAuditHandlerDeduplicates(t *testing.T) {
	store := newFakeAudit()
	h := NewAuditHandler("g", store, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionCreated, testID, "https://p/v2", "", "", "alice", "req-1")
	require.Nil(t, h(context.Background(), event))
	require.Nil(t, h(context.Background(), event))

	assert.Len(t, store.seen, 1)
}

func TestAuditHandlerPropagatesFailure(t *testing.T) {
	store := newFakeAudit()
	store.err = apperrors.New("mongo down")
	h := NewAuditHandler("g", store, nil)

	event := eventlog.NewRouteEvent(eventlog.ActionCreated, testID, "https://p/v2", "", "", "", "")
	assert.NotNil(t, h(context.Background(), event))
}
