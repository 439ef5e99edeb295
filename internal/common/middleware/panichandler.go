package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/httpx"
)

// PanicHandler recovers from handler panics and sends a generic 500 so a
// programming error never tears down the server.
func PanicHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(r.Context()).Error().Msgf("panic occurred: %v", err)
				httpx.ErrApplicationError("unable to process request, please try again later").Send(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
