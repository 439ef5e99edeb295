package apis

import (
	"net/http"

	"github.com/routeplane/routeplane/internal/common/httpx"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

type resolveRsp struct {
	Tenant  string `json:"tenant"`
	Service string `json:"service"`
	Env     string `json:"env"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// routeIDFromQuery reads the four identifier components from the query
// string.
func routeIDFromQuery(r *http.Request) (routecommon.RouteID, error) {
	q := r.URL.Query()
	id := routecommon.RouteID{
		Tenant:  q.Get("tenant"),
		Service: q.Get("service"),
		Env:     q.Get("env"),
		Version: q.Get("version"),
	}
	if err := id.Validate(); err != nil {
		return routecommon.RouteID{}, err
	}
	return id, nil
}

// Resolve the endpoint URL for a route
func resolveRoute(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	id, err := routeIDFromQuery(r)
	if err != nil {
		return nil, err
	}

	url, aerr := handlers.Resolver.Resolve(ctx, id)
	if aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: resolveRsp{
			Tenant:  id.Tenant,
			Service: id.Service,
			Env:     id.Env,
			Version: id.Version,
			URL:     url,
		},
	}, nil
}
