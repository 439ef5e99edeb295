// Package dberror defines the error sentinels surfaced by the record store.
package dberror

import (
	"net/http"

	"github.com/routeplane/routeplane/internal/common/apperrors"
)

var (
	ErrDatabase     apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrNotFound     apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrConflict     apperrors.Error = ErrDatabase.New("conflicting route definition").SetStatusCode(http.StatusConflict)
	ErrInvalidInput apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
)
