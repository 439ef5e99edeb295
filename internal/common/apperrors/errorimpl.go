package apperrors

type appError struct {
	msg        string
	base       *appError
	wrapped    []error
	statusCode int
}

// New creates a root sentinel error with no base.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll renders the message together with every wrapped cause.
func (e *appError) ErrorAll() string {
	if len(e.wrapped) == 0 {
		return e.msg
	}
	msg := e.msg
	sep := ": "
	for _, err := range e.wrapped {
		msg += sep + err.Error()
		sep = "; "
	}
	return msg
}

// derive creates a child pointing back at the receiver. Every derivation
// method goes through here so the base chain stays intact and Is keeps
// matching the originating sentinel.
func (e *appError) derive(msg string, errs ...error) *appError {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    errs,
		statusCode: e.statusCode,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg)
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, errs...)
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, errs...)
}

func (e *appError) Unwrap() []error {
	return e.wrapped
}

func (e *appError) Is(target error) bool {
	for b := e; b != nil; b = b.base {
		if error(b) == target {
			return true
		}
	}
	return false
}

func (e *appError) SetStatusCode(code int) Error {
	c := e.derive(e.msg)
	c.statusCode = code
	return c
}

func (e *appError) StatusCode() int {
	return e.statusCode
}
