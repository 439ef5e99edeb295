package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeplane/routeplane/internal/common/correlation"
)

func TestCorrelationTrackerAdoptsInboundID(t *testing.T) {
	var seen string
	h := CorrelationTracker(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlation.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlation.Header, "req-abcdef0123456789")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-abcdef0123456789", seen)
	assert.Equal(t, "req-abcdef0123456789", rec.Header().Get(correlation.Header))
}

func TestCorrelationTrackerGeneratesID(t *testing.T) {
	var seen string
	h := CorrelationTracker(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = correlation.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(correlation.Header))
	assert.Len(t, seen, len("req-")+16)
}
