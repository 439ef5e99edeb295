// Package apperrors provides the error type used across all layers of the
// service. Errors form a hierarchy: package-level sentinels are derived from a
// base error with New, and call sites derive leaf errors carrying a message
// and wrapped causes. Matching is by identity along the base chain, so
// errors.Is(err, dberror.ErrNotFound) works across package boundaries.
package apperrors

// Error is the error surface exposed to every layer. Derivation methods
// (New, Msg, MsgErr, Err, SetStatusCode) never mutate the receiver; they
// return a copy so package-level sentinels stay immutable.
type Error interface {
	Error() string
	ErrorAll() string
	New(msg string) Error
	Msg(msg string) Error
	MsgErr(msg string, errs ...error) Error
	Err(errs ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetStatusCode(code int) Error
	StatusCode() int
}
