package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHierarchy(t *testing.T) {
	errBase := New("base error")
	assert.Equal(t, "base error", errBase.Error())
	assert.ErrorIs(t, errBase, errBase)

	errChild := errBase.New("child error")
	assert.Equal(t, "child error", errChild.Error())
	assert.ErrorIs(t, errChild, errBase)
	assert.NotErrorIs(t, errBase, errChild)

	errOther := New("other error")
	assert.NotErrorIs(t, errChild, errOther)
}

func TestErrorWrapping(t *testing.T) {
	errBase := New("base error")
	errChild := errBase.New("child error")

	cause := errors.New("connection refused")
	wrapped := errChild.Err(cause)
	assert.Equal(t, "child error", wrapped.Error())
	assert.ErrorIs(t, wrapped, errBase)
	assert.ErrorIs(t, wrapped, errChild)
	assert.ErrorIs(t, wrapped, cause)

	withMsg := errChild.MsgErr("operation failed", cause)
	assert.Equal(t, "operation failed", withMsg.Error())
	assert.ErrorIs(t, withMsg, errChild)
	assert.ErrorIs(t, withMsg, cause)
	assert.Equal(t, "operation failed: connection refused", withMsg.ErrorAll())
}

func TestSentinelsAreNotMutated(t *testing.T) {
	errBase := New("base error")
	sentinel := errBase.New("sentinel")

	derived := sentinel.Msg("something specific")
	assert.Equal(t, "sentinel", sentinel.Error())
	assert.Equal(t, "something specific", derived.Error())
	assert.ErrorIs(t, derived, sentinel)
}

func TestStatusCode(t *testing.T) {
	errBase := New("db error").SetStatusCode(http.StatusInternalServerError)
	assert.Equal(t, http.StatusInternalServerError, errBase.StatusCode())

	errNotFound := errBase.New("not found").SetStatusCode(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, errNotFound.StatusCode())
	assert.ErrorIs(t, errNotFound, errBase)

	// children inherit the status code until overridden
	derived := errNotFound.Msg("no such route")
	assert.Equal(t, http.StatusNotFound, derived.StatusCode())
}
