package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/correlation"
)

// CorrelationTracker binds a correlation id to every request. The inbound
// X-Correlation-ID header is adopted when present, a fresh id is generated
// otherwise. The id is stored in the context, injected into the context
// logger so every downstream log record carries it, and mirrored on the
// response so client-side logs can cross-reference.
func CorrelationTracker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		correlationID := r.Header.Get(correlation.Header)
		if correlationID == "" {
			correlationID = correlation.NewID()
		}
		ctx = correlation.WithID(ctx, correlationID)
		ctx = log.With().Str("correlation_id", correlationID).Logger().WithContext(ctx)
		w.Header().Set(correlation.Header, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger logs one line per request with method, path and remote
// address. It runs after CorrelationTracker so the record carries the id.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("request")
		next.ServeHTTP(w, r)
	})
}
