// Package s3err defines the error kinds surfaced across the library,
// grounded on the teacher's sentinel-error style in
// internal/cloud/storage/errors.go, generalised so that a Kind can be
// recovered programmatically with errors.As instead of string-sniffing
// the message.
package s3err

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and handling purposes.
type Kind int

const (
	// Usage indicates the caller supplied invalid arguments. Never retried.
	Usage Kind = iota
	// MissingKey indicates the key provider has no matching key pair.
	MissingKey
	// UnsupportedVersion indicates an object's s3tool-version does not match.
	UnsupportedVersion
	// Transient indicates a network timeout, 5xx, or throttling response.
	Transient
	// ClientSide indicates a 4xx error other than throttling.
	ClientSide
	// Crypto indicates an RSA unwrap, AES decrypt, or ciphertext-length failure.
	Crypto
	// IntegrityIO indicates unexpected EOF or a short local write.
	IntegrityIO
	// Cancelled indicates cooperative cancellation.
	Cancelled
	// LastKeyRemoval indicates an attempt to remove the only remaining key wrapping.
	LastKeyRemoval
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case MissingKey:
		return "missing_key"
	case UnsupportedVersion:
		return "unsupported_version"
	case Transient:
		return "transient"
	case ClientSide:
		return "client_side"
	case Crypto:
		return "crypto"
	case IntegrityIO:
		return "integrity_io"
	case Cancelled:
		return "cancelled"
	case LastKeyRemoval:
		return "last_key_removal"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the library's public surface.
// Context is a short human-readable label for the failed step (for
// Cancelled errors from the retry executor, the thunk's description);
// Cause is the underlying error, if any.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// Is reports whether err (or any error in its chain) is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether an error of this kind should be retried by
// default (i.e. without the retryClientException opt-out).
func (k Kind) Retryable() bool {
	return k == Transient
}
