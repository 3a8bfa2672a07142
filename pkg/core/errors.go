package core

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// Common errors.
var (
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")
	ErrLoginRejected               = errors.New("login rejected")
	ErrMalformedPersistedSession   = errors.New("malformed persisted session")
	ErrTransportFailure            = errors.New("transport failure")
	ErrServerRejection             = errors.New("rejected by content service")
	ErrInvalidInput                = errors.New("invalid input")
	ErrNoIdentity                  = errors.New("no active identity")
	ErrUnknownIdentity             = errors.New("unknown simulated identity")
)

// ServerRejection carries the content service's error text verbatim.
type ServerRejection struct {
	Op      string
	Message string
}

func (e *ServerRejection) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is lets errors.Is(err, ErrServerRejection) match any rejection.
func (e *ServerRejection) Is(target error) bool {
	return target == ErrServerRejection
}

// Reject builds a ServerRejection for the given remote operation.
func Reject(op, message string) error {
	return &ServerRejection{Op: op, Message: message}
}

// InvalidInput wraps ErrInvalidInput with a human readable reason.
func InvalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// IsTransportFailure reports whether err is a network or certificate
// verification failure, as opposed to the remote service refusing a request.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerRejection) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransportFailure) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
		netErr           net.Error
	)
	switch {
	case errors.As(err, &unknownAuthority),
		errors.As(err, &invalidCert),
		errors.As(err, &hostname),
		errors.As(err, &verification),
		errors.As(err, &netErr):
		return true
	}
	return false
}

// FailureReason names the class of a remote failure for logs and traces.
func FailureReason(err error) string {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &unknownAuthority), errors.As(err, &invalidCert),
		errors.As(err, &hostname), errors.As(err, &verification):
		return "certificate_verification"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrServerRejection):
		return "server_rejection"
	case IsTransportFailure(err):
		return "transport"
	default:
		return "unexpected"
	}
}
