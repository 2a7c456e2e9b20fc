package at

import "errors"

var (
	// ErrInvalidArgument is returned when a parameter is outside of its
	// documented domain, or when params/out do not have the type the
	// command's formatter or parser expects.
	//
	// It indicates a programming error by the caller and is never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrBufferTooSmall is returned by Format when the complete command line,
	// including its terminator, does not fit the destination buffer. The
	// destination is cleared in that case.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrUnsupportedVariant is returned when a descriptor does not declare
	// the requested variant.
	ErrUnsupportedVariant = errors.New("unsupported command variant")

	// ErrOverflow is returned when a response grows past the accumulator's
	// capacity before it is complete.
	ErrOverflow = errors.New("response exceeds maximum size")

	// ErrMalformedResponse is returned by Classify when a buffer carries no
	// final result line. For a buffer that IsComplete accepted this is an
	// internal defect.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidResponse is returned by a parser when the mandatory leading
	// field of a data line cannot be parsed.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrInvalidDescriptor is returned when a descriptor violates the
	// registry invariants (write variant without formatter, unknown shape, ...).
	ErrInvalidDescriptor = errors.New("invalid command descriptor")
)
