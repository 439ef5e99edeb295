package apis

import (
	"net/http"
	"strconv"
	"time"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/httpx"
	"github.com/routeplane/routeplane/internal/routesrv/audit"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

type auditRsp struct {
	Tenant  string           `json:"tenant,omitempty"`
	Service string           `json:"service,omitempty"`
	Env     string           `json:"env,omitempty"`
	Version string           `json:"version,omitempty"`
	Count   int              `json:"count"`
	Events  []audit.Document `json:"events"`
}

// Route change history, newest first. The identifier, action and time range
// are all optional filters; with none set the most recent events across all
// routes are returned.
func routeAuditHistory(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	id, err := optionalRouteIDFromQuery(r)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	opts := audit.QueryOptions{Route: id, Action: q.Get("action")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, httpx.ErrInvalidRequest("limit must be a positive integer")
		}
		opts.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("since must be an RFC3339 timestamp")
		}
		opts.Since = since
	}
	if raw := q.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("until must be an RFC3339 timestamp")
		}
		opts.Until = until
	}

	docs, aerr := handlers.Audit.History(ctx, opts)
	if aerr != nil {
		return nil, aerr
	}
	if docs == nil {
		docs = []audit.Document{}
	}

	rsp := auditRsp{Count: len(docs), Events: docs}
	if id != nil {
		rsp.Tenant = id.Tenant
		rsp.Service = id.Service
		rsp.Env = id.Env
		rsp.Version = id.Version
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// optionalRouteIDFromQuery reads the identifier when any of its parts are
// present. A partial identifier is rejected; an absent one means the query
// is not route scoped.
func optionalRouteIDFromQuery(r *http.Request) (*routecommon.RouteID, apperrors.Error) {
	q := r.URL.Query()
	id := routecommon.RouteID{
		Tenant:  q.Get("tenant"),
		Service: q.Get("service"),
		Env:     q.Get("env"),
		Version: q.Get("version"),
	}
	if id == (routecommon.RouteID{}) {
		return nil, nil
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &id, nil
}
