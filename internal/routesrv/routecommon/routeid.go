// Package routecommon holds the route identifier type and the small helpers
// shared by the read path, write path, event log and consumers.
package routecommon

import (
	"net/http"
	"strings"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// NegativeCacheValue is the sentinel stored in the cache when a route is
// known not to exist.
const NegativeCacheValue = "__NOT_FOUND__"

// ErrInvalidRouteID is returned when any identifier component is empty.
var ErrInvalidRouteID = apperrors.New("invalid route identifier").SetStatusCode(http.StatusBadRequest)

// RouteID is the logical key for a route: (tenant, service, env, version).
// Its canonical string form doubles as the event partition key and the cache
// key suffix.
type RouteID struct {
	Tenant  string `json:"tenant" validate:"required"`
	Service string `json:"service" validate:"required"`
	Env     string `json:"env" validate:"required"`
	Version string `json:"version" validate:"required"`
}

// String returns the canonical colon-joined form, e.g.
// "team-a:payments:prod:v2".
func (id RouteID) String() string {
	return id.Tenant + ":" + id.Service + ":" + id.Env + ":" + id.Version
}

// CacheKey returns the cache key for the route, "route:" + canonical form.
func (id RouteID) CacheKey() string {
	return "route:" + id.String()
}

// Validate checks that all four components are present and free of the
// separator character.
func (id RouteID) Validate() apperrors.Error {
	for _, part := range []string{id.Tenant, id.Service, id.Env, id.Version} {
		if strings.TrimSpace(part) == "" {
			return ErrInvalidRouteID.Msg("tenant, service, env and version are all required")
		}
		if strings.Contains(part, ":") {
			return ErrInvalidRouteID.Msg("identifier components must not contain ':'")
		}
	}
	return nil
}
