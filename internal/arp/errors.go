package arp

import "errors"

// Sentinel errors for the policy layer. Callers classify failures with
// errors.Is; the concrete cause is carried by wrapping.
var (
	// ErrMarshalling indicates a malformed policy document. Raised at load
	// time, never during match evaluation.
	ErrMarshalling = errors.New("arp marshalling failed")

	// ErrRepository indicates the policy store itself is broken.
	ErrRepository = errors.New("arp repository failure")

	// ErrProcessing wraps repository or evaluation failures surfaced to the
	// caller of the engine.
	ErrProcessing = errors.New("arp processing failure")

	// ErrMatching indicates malformed input to a match function, e.g. a
	// non-URL resource string where a URL was required.
	ErrMatching = errors.New("match evaluation failed")
)
