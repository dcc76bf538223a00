package libs

import (
	"github.com/pkg/errors"
)

var (
	// ErrEncoding marks a value that cannot be rendered canonically, e.g. nanos out of [0, 1e9).
	ErrEncoding = errors.New("canonical encoding failed")
	// ErrDecoding marks malformed canonical bytes.
	ErrDecoding = errors.New("canonical decoding failed")

	ErrAlreadySigned               = errors.New("envelope has already been signed")
	ErrMissingSignature            = errors.New("envelope carries no signature")
	ErrUnknownMessageType          = errors.New("unknown message type")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrTransport wraps failures of the remote signer link.
	ErrTransport = errors.New("remote signer transport failure")
)

var (
	// ErrInvalidSignature marks a signature of the wrong size for the scheme.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidMessage marks a well-formed message whose values break a type invariant.
	ErrInvalidMessage = errors.New("invalid message")
)
