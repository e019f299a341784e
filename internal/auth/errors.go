package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies identity resolution failures.
type ErrorKind string

const (
	// MissingCredential means no bearer token was presented.
	MissingCredential ErrorKind = "missing_credential"
	// InvalidCredential means the identity provider rejected the token.
	InvalidCredential ErrorKind = "invalid_credential"
	// Unauthorized covers any other resolution failure.
	Unauthorized ErrorKind = "unauthorized"
)

// Fixed reasons carried by AuthError. Provider and store error text never
// appears in a reason.
const (
	ReasonNoBearer          = "no bearer credential"
	ReasonTokenRejected     = "token rejected by identity provider"
	ReasonNoSubject         = "principal has no subject"
	ReasonProviderNotConfig = "identity provider not configured"
)

// ErrInvalidToken is returned by providers when a token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// AuthError is the only error type returned by Resolver.Resolve.
type AuthError struct {
	Kind   ErrorKind
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("authentication failed: %s", e.Kind)
	}
	return fmt.Sprintf("authentication failed: %s: %s", e.Kind, e.Reason)
}
