package at

import (
	"bytes"
	"fmt"
)

// State is the state of an Accumulator.
type State int

const (
	Accumulating State = iota
	Complete
	TimedOut
	Overflowed
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Complete:
		return "complete"
	case TimedOut:
		return "timed-out"
	case Overflowed:
		return "overflowed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsComplete decides whether buf holds a complete response for a command
// whose data lines start with dataPrefix and whose variant has the given
// shape. Only CRLF terminated lines count, and a marker at the very start
// of buf counts as starting a line.
//
// A failure result completes the response regardless of shape. SimpleOnly
// and DataOptional responses complete on OK; DataRequired responses also
// need a complete data line, which may arrive before or after the OK.
//
// IsComplete is pure: the same buffer always yields the same verdict.
func IsComplete(buf []byte, dataPrefix string, shape Shape) bool {
	var gotOK, gotData, failed bool
	prefix := []byte(dataPrefix)
	scanLines(buf, func(l line) bool {
		if !l.complete {
			return true
		}
		switch {
		case bytes.Equal(l.text, []byte(OK)):
			gotOK = true
		case isFailure(l.text):
			failed = true
			return false
		case len(prefix) > 0 && bytes.HasPrefix(l.text, prefix):
			gotData = true
		}
		return true
	})
	if failed {
		return true
	}
	if !gotOK {
		return false
	}
	if shape == DataRequired {
		return gotData
	}
	return true
}

// isFailure reports a final result other than OK.
func isFailure(text []byte) bool {
	s := string(text)
	return s != OK && IsFinal(s)
}

// PromptReady reports whether buf contains the data input prompt, or a
// failure result that makes waiting for one pointless.
func PromptReady(buf []byte) (prompt, failed bool) {
	scanLines(buf, func(l line) bool {
		switch {
		case string(l.text) == Prompt:
			prompt = true
			return false
		case l.complete && isFailure(l.text):
			failed = true
			return false
		}
		return true
	})
	return prompt, failed
}

// Accumulator collects transport chunks for one in-flight transaction and
// re-evaluates completion after every chunk. It never grows past its
// capacity.
type Accumulator struct {
	buf        []byte
	max        int
	dataPrefix string
	shape      Shape
	state      State
}

// NewAccumulator returns an accumulator for a response of the given shape
// bounded to max bytes.
func NewAccumulator(dataPrefix string, shape Shape, max int) *Accumulator {
	if max <= 0 {
		max = MaxResponseLen
	}
	return &Accumulator{
		buf:        make([]byte, 0, min(max, 512)),
		max:        max,
		dataPrefix: dataPrefix,
		shape:      shape,
	}
}

// Append adds chunk and returns the new state. Appending to a finished
// accumulator is a no-op. Bytes past the capacity are dropped; if the
// retained bytes do not complete the response, the accumulator moves to
// Overflowed and Append returns ErrOverflow.
func (a *Accumulator) Append(chunk []byte) (State, error) {
	if a.state != Accumulating {
		return a.state, nil
	}
	take := min(len(chunk), a.max-len(a.buf))
	a.buf = append(a.buf, chunk[:take]...)
	if IsComplete(a.buf, a.dataPrefix, a.shape) {
		a.state = Complete
		return a.state, nil
	}
	if take < len(chunk) {
		a.state = Overflowed
		return a.state, fmt.Errorf("%d bytes dropped past max %d: %w", len(chunk)-take, a.max, ErrOverflow)
	}
	return a.state, nil
}

// Expire moves an unfinished accumulator to TimedOut.
func (a *Accumulator) Expire() State {
	if a.state == Accumulating {
		a.state = TimedOut
	}
	return a.state
}

// State returns the current state.
func (a *Accumulator) State() State {
	return a.state
}

// Bytes returns the accumulated bytes. The slice is only meaningful while
// the accumulator is in the Complete state.
func (a *Accumulator) Bytes() []byte {
	return a.buf
}

// Len returns the number of accumulated bytes.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Reset empties the accumulator for reuse with a new response shape.
func (a *Accumulator) Reset(dataPrefix string, shape Shape) {
	clear(a.buf)
	a.buf = a.buf[:0]
	a.dataPrefix = dataPrefix
	a.shape = shape
	a.state = Accumulating
}
