// Package httpx provides the request handler wrapper and JSON response
// plumbing shared by all API handlers.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

// GetRequestData decodes a JSON request body into data.
func GetRequestData(r *http.Request, data any) error {
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is what a RequestHandler returns on success.
type Response struct {
	StatusCode int
	Response   any
}

// RequestHandler is the shape of every API handler. Errors are translated to
// HTTP responses by WrapHttpRsp; apperrors status codes drive the mapping.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler into an http.HandlerFunc, mapping
// errors to JSON error bodies carrying the correlation id.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			sendHandlerError(w, r, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w, r)
			return
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
	}
}

func sendHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	if httperr, ok := err.(*Error); ok {
		httperr.Send(w, r)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		(&Error{
			StatusCode:  statusCode,
			Description: appErr.Error(),
		}).Send(w, r)
		return
	}
	ErrApplicationError(err.Error()).Send(w, r)
}

// SendJsonRsp encodes rsp as JSON with the given status code.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, rsp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if rsp == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}

// ResponseHandlerParam binds a method and path to a handler for route tables.
type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler RequestHandler
}
