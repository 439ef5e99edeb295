package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/common/correlation"
)

// Error is a transport-level error carrying the HTTP status code to send.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Send writes the error as a JSON body. The correlation id from the request
// context is included so clients can cross-reference their logs.
func (e *Error) Send(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	rsp := &errorRsp{Error: e.Description}
	if r != nil {
		rsp.CorrelationID = correlation.FromContext(r.Context())
	}
	body, err := json.Marshal(rsp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("unable to encode error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(body)
}

func (e *Error) Error() string {
	return e.Description
}

// SendError maps an apperrors.Error to an HTTP error response.
func SendError(w http.ResponseWriter, r *http.Request, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	(&Error{
		StatusCode:  statusCode,
		Description: err.Error(),
	}).Send(w, r)
}

// Common errors

func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request",
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrInvalidRequest(str ...string) *Error {
	s := "empty request values or invalid request"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrApplicationError(err ...string) *Error {
	s := "unable to process request"
	if len(err) > 0 {
		s = err[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusInternalServerError,
	}
}

func ErrServiceUnavailable(str ...string) *Error {
	s := "service temporarily unavailable"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusServiceUnavailable,
	}
}
