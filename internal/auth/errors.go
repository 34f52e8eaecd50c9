package auth

import "errors"

// Outcomes returned by Service. Handlers map each one to a transport status;
// none of them carries internal detail.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrStorage            = errors.New("storage unavailable")
	ErrInternal           = errors.New("internal error")
	ErrValidation         = errors.New("validation failed")
)

// Token verification failures. Service collapses all of them into
// ErrUnauthenticated.
var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token has expired")
	ErrMalformedToken   = errors.New("token is malformed")
)

// ValidationError describes a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
