package apis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/correlation"
	"github.com/routeplane/routeplane/internal/common/middleware"
	"github.com/routeplane/routeplane/internal/routesrv/audit"
	"github.com/routeplane/routeplane/internal/routesrv/cache"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/db/dberror"
	"github.com/routeplane/routeplane/internal/routesrv/db/models"
	"github.com/routeplane/routeplane/internal/routesrv/mutator"
	"github.com/routeplane/routeplane/internal/routesrv/resilience"
	"github.com/routeplane/routeplane/internal/routesrv/resolver"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

type memStore struct {
	routes map[string]*models.Endpoint
}

func newMemStore() *memStore {
	return &memStore{routes: map[string]*models.Endpoint{}}
}

func (s *memStore) ResolveActiveURL(ctx context.Context, id routecommon.RouteID) (string, apperrors.Error) {
	ep, ok := s.routes[id.String()]
	if !ok || !ep.IsActive {
		return "", dberror.ErrNotFound.Msg("route not found")
	}
	return ep.URL, nil
}

func (s *memStore) CreateRoute(ctx context.Context, id routecommon.RouteID, url string) (*models.MutationResult, apperrors.Error) {
	if ep, ok := s.routes[id.String()]; ok {
		if ep.URL == url && ep.IsActive {
			return &models.MutationResult{URL: url, Previous: models.EndpointState{URL: ep.URL, IsActive: true, Existed: true}}, nil
		}
		return nil, dberror.ErrConflict.Msg("route already exists with a different definition")
	}
	s.routes[id.String()] = &models.Endpoint{URL: url, IsActive: true}
	return &models.MutationResult{URL: url, Changed: true}, nil
}

func (s *memStore) ActivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error) {
	return s.setActive(id, true)
}

func (s *memStore) DeactivateRoute(ctx context.Context, id routecommon.RouteID) (*models.MutationResult, apperrors.Error) {
	return s.setActive(id, false)
}

func (s *memStore) setActive(id routecommon.RouteID, active bool) (*models.MutationResult, apperrors.Error) {
	ep, ok := s.routes[id.String()]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("route not found")
	}
	result := &models.MutationResult{
		URL:      ep.URL,
		Previous: models.EndpointState{URL: ep.URL, IsActive: ep.IsActive, Existed: true},
		Changed:  ep.IsActive != active,
	}
	ep.IsActive = active
	return result, nil
}

type memCache struct {
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, id routecommon.RouteID) (cache.Lookup, apperrors.Error) {
	val, ok := c.entries[id.CacheKey()]
	if !ok {
		return cache.Lookup{}, nil
	}
	if val == routecommon.NegativeCacheValue {
		return cache.Lookup{Found: true, Negative: true}, nil
	}
	return cache.Lookup{Found: true, URL: val}, nil
}

func (c *memCache) SetPositive(ctx context.Context, id routecommon.RouteID, url string) apperrors.Error {
	c.entries[id.CacheKey()] = url
	return nil
}

func (c *memCache) SetNegative(ctx context.Context, id routecommon.RouteID) apperrors.Error {
	c.entries[id.CacheKey()] = routecommon.NegativeCacheValue
	return nil
}

type memAudit struct {
	docs     []audit.Document
	err      apperrors.Error
	lastOpts audit.QueryOptions
}

func (a *memAudit) History(ctx context.Context, opts audit.QueryOptions) ([]audit.Document, apperrors.Error) {
	a.lastOpts = opts
	if a.err != nil {
		return nil, a.err
	}
	return a.docs, nil
}

func testServer(t *testing.T) (*chi.Mux, *memStore, *resilience.Kernel) {
	t.Helper()
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
	kernel := resilience.NewKernel(cfg, nil)
	store := newMemStore()

	h := &Handlers{
		Resolver: resolver.New(store, newMemCache(), kernel, nil),
		Mutator:  mutator.New(store, nil, kernel, nil),
		Audit:    &memAudit{},
		Kernel:   kernel,
		Ready:    func() map[string]string { return map[string]string{"postgres": "ok"} },
	}

	r := chi.NewRouter()
	r.Use(middleware.CorrelationTracker)
	HealthRouter(r, h)
	r.Route("/api/v1", func(r chi.Router) {
		Router(r, h)
	})
	return r, store, kernel
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateThenResolve(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/routes", map[string]string{
		"tenant": "team-a", "service": "payments", "env": "prod", "version": "v2",
		"url": "https://p/v2", "changed_by": "alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/routes/resolve?tenant=team-a&service=payments&env=prod&version=v2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp resolveRsp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	assert.Equal(t, "https://p/v2", rsp.URL)
	assert.Equal(t, "team-a", rsp.Tenant)
}

func TestResolveNotFound(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/routes/resolve?tenant=x&service=y&env=z&version=v1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
	assert.NotEmpty(t, body["correlation_id"])
}

func TestResolveMissingParams(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/routes/resolve?tenant=team-a", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateConflict(t *testing.T) {
	srv, _, _ := testServer(t)

	body := map[string]string{
		"tenant": "team-a", "service": "payments", "env": "prod", "version": "v2",
		"url": "https://p/v2",
	}
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/routes", body).Code)
	// same definition is idempotent
	assert.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/routes", body).Code)

	body["url"] = "https://other/v2"
	assert.Equal(t, http.StatusConflict, doJSON(t, srv, http.MethodPost, "/api/v1/routes", body).Code)
}

func TestCreateValidation(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/routes", map[string]string{"tenant": "team-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/routes", map[string]string{
		"tenant": "team-a", "service": "payments", "env": "prod", "version": "v2",
		"url": "not a url",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateDeactivate(t *testing.T) {
	srv, store, _ := testServer(t)

	body := map[string]string{
		"tenant": "team-a", "service": "payments", "env": "prod", "version": "v2",
		"url": "https://p/v2",
	}
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/v1/routes", body).Code)

	deact := map[string]string{"tenant": "team-a", "service": "payments", "env": "prod", "version": "v2"}
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/routes/deactivate", deact)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.routes["team-a:payments:prod:v2"].IsActive)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/routes/activate", deact)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.routes["team-a:payments:prod:v2"].IsActive)
}

func TestActivateUnknownRoute(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/routes/activate", map[string]string{
		"tenant": "x", "service": "y", "env": "z", "version": "v9",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditHistory(t *testing.T) {
	srv, _, _ := testServer(t)
	mem := &memAudit{docs: []audit.Document{
		{EventID: "e1", Action: "created", URL: "https://p/v2", OccurredAt: time.Now()},
	}}
	handlers.Audit = mem

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit/route?tenant=team-a&service=payments&env=prod&version=v2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp auditRsp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	assert.Equal(t, 1, rsp.Count)
	assert.Equal(t, "e1", rsp.Events[0].EventID)

	require.NotNil(t, mem.lastOpts.Route)
	assert.Equal(t, "team-a", mem.lastOpts.Route.Tenant)
}

func TestAuditHistoryWithoutIdentifier(t *testing.T) {
	srv, _, _ := testServer(t)
	mem := &memAudit{docs: []audit.Document{
		{EventID: "e1", Action: "deactivated", OccurredAt: time.Now()},
		{EventID: "e2", Action: "deactivated", OccurredAt: time.Now()},
	}}
	handlers.Audit = mem

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit/route?action=deactivated&limit=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp auditRsp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	assert.Equal(t, 2, rsp.Count)
	assert.Empty(t, rsp.Tenant)

	assert.Nil(t, mem.lastOpts.Route)
	assert.Equal(t, "deactivated", mem.lastOpts.Action)
	assert.Equal(t, 50, mem.lastOpts.Limit)
}

func TestAuditHistoryTimeRangeOnly(t *testing.T) {
	srv, _, _ := testServer(t)
	mem := &memAudit{}
	handlers.Audit = mem

	since := "2026-08-01T00:00:00Z"
	until := "2026-08-26T00:00:00Z"
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit/route?since="+since+"&until="+until, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Nil(t, mem.lastOpts.Route)
	assert.Equal(t, since, mem.lastOpts.Since.Format(time.RFC3339))
	assert.Equal(t, until, mem.lastOpts.Until.Format(time.RFC3339))
}

func TestAuditHistoryPartialIdentifier(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit/route?tenant=team-a&service=payments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditHistoryBadLimit(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit/route?tenant=a&service=b&env=c&version=d&limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, kernel := testServer(t)

	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/health/ready", nil).Code)

	rec := doJSON(t, srv, http.MethodGet, "/health/resilience", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap resilience.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Breakers, 4)

	kernel.Drainer().StartDraining()
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, srv, http.MethodGet, "/health/ready", nil).Code)
	// liveness is independent of draining
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/health/live", nil).Code)
}

func TestErrorBodyCarriesCorrelationID(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/resolve?tenant=x&service=y&env=z&version=v1", nil)
	req.Header.Set(correlation.Header, "req-fixedid12345678")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-fixedid12345678", body["correlation_id"])
	assert.Equal(t, "req-fixedid12345678", rec.Header().Get(correlation.Header))
}
