package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when the Dialer produced no Transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned by operations on a Modem that has been
	// closed, including a second Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrSIMPinRequired is returned when the SIM card requires a PIN and no
	// PIN was provided in the Config.
	//
	// Callers may handle this error specially (for example, by prompting
	// the user for a PIN) and retry initialization.
	ErrSIMPinRequired = errors.New("SIM PIN required")

	// ErrLoopRunning is returned by Loop when another Loop is already
	// pumping the same Modem.
	ErrLoopRunning = errors.New("loop already running")

	// ErrTransport wraps failures reported by the Transport while a command
	// is written or its response is read.
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned when a command's wall clock budget elapses
	// before its response is complete. The partial response is discarded.
	ErrTimeout = errors.New("command timed out")

	// ErrCommandRejected is matched by every *RejectedError.
	ErrCommandRejected = errors.New("command rejected")

	// ErrNoPrompt is returned when the modem did not ask for the payload of
	// a prompt transaction.
	ErrNoPrompt = errors.New("no data input prompt")
)

// RejectedError reports that the modem answered a command with ERROR or
// with a +CME/+CMS ERROR result. Codes are passed through undecoded.
type RejectedError struct {
	// Command is the wire name, e.g. "AT+CPIN".
	Command string
	// Final is the final result line as received.
	Final string
	// Code is the numeric error code, valid when HasCode is set.
	Code    int
	HasCode bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Final)
}

// Is makes errors.Is(err, ErrCommandRejected) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrCommandRejected
}
