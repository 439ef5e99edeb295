package apis

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/routeplane/routeplane/internal/common/httpx"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

var validate = validator.New()

type routeReq struct {
	Tenant    string `json:"tenant" validate:"required"`
	Service   string `json:"service" validate:"required"`
	Env       string `json:"env" validate:"required"`
	Version   string `json:"version" validate:"required"`
	URL       string `json:"url"`
	ChangedBy string `json:"changed_by"`
}

func (req routeReq) routeID() routecommon.RouteID {
	return routecommon.RouteID{
		Tenant:  req.Tenant,
		Service: req.Service,
		Env:     req.Env,
		Version: req.Version,
	}
}

func parseRouteReq(r *http.Request) (routeReq, error) {
	var req routeReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return routeReq{}, err
	}
	if err := validate.Struct(req); err != nil {
		return routeReq{}, httpx.ErrInvalidRequest("tenant, service, env and version are required")
	}
	return req, nil
}

// Create a route and activate it
func createRoute(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	req, err := parseRouteReq(r)
	if err != nil {
		return nil, err
	}

	result, aerr := handlers.Mutator.Create(ctx, req.routeID(), req.URL, req.ChangedBy)
	if aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   result,
	}, nil
}

// Mark a route active
func activateRoute(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	req, err := parseRouteReq(r)
	if err != nil {
		return nil, err
	}

	result, aerr := handlers.Mutator.Activate(ctx, req.routeID(), req.ChangedBy)
	if aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}

// Mark a route inactive
func deactivateRoute(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()

	req, err := parseRouteReq(r)
	if err != nil {
		return nil, err
	}

	result, aerr := handlers.Mutator.Deactivate(ctx, req.routeID(), req.ChangedBy)
	if aerr != nil {
		return nil, aerr
	}

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}
