package jwtx

import (
	"errors"
	"fmt"
)

// Key source failures.
var (
	ErrKeySourceUnavailable = errors.New("jwtx: key source unavailable")
	ErrKeySourceMalformed   = errors.New("jwtx: key source returned malformed key set")
	ErrNoKey                = errors.New("jwtx: key not found")
)

// Validation failure kinds. A *ValidationError always matches exactly one of
// these through errors.Is.
var (
	ErrMalformedToken        = errors.New("jwtx: malformed token")
	ErrAlgorithmNotAllowed   = errors.New("jwtx: algorithm not allowed")
	ErrUnknownKey            = errors.New("jwtx: unknown signing key")
	ErrInvalidSignature      = errors.New("jwtx: invalid signature")
	ErrTokenExpired          = errors.New("jwtx: token expired")
	ErrTokenNotYetValid      = errors.New("jwtx: token not yet valid")
	ErrMissingExpiration     = errors.New("jwtx: token has no expiration")
	ErrIssuerMismatch        = errors.New("jwtx: issuer mismatch")
	ErrAudienceMismatch      = errors.New("jwtx: audience mismatch")
	ErrValidationUnavailable = errors.New("jwtx: validation unavailable")
)

// ValidationError is returned by Validator.Validate. Kind is one of the
// sentinel errors above, Err carries the underlying cause when there is one.
type ValidationError struct {
	Kind error
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationErr(kind, cause error) *ValidationError {
	return &ValidationError{Kind: kind, Err: cause}
}

// IsUnavailable reports whether err means the token could not be judged
// because signing keys were unobtainable. Callers should answer with a
// retryable failure instead of treating the token as invalid.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrValidationUnavailable)
}
