package at_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/bg95/at"
)

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		prefix string
		shape  at.Shape
		want   bool
	}{
		{name: "empty buffer", input: "", prefix: "+CSQ:", shape: at.DataRequired, want: false},
		{name: "ok simple", input: "\r\nOK\r\n", shape: at.SimpleOnly, want: true},
		{name: "ok at start of buffer", input: "OK\r\n", shape: at.SimpleOnly, want: true},
		{name: "ok without terminator", input: "\r\nOK", shape: at.SimpleOnly, want: false},
		{name: "ok as substring of data", input: "\r\n+COPS: 0,0,\"OK\"\r\n", prefix: "+COPS:", shape: at.DataOptional, want: false},
		{name: "data required both present", input: "\r\n+CSQ: 15,99\r\n\r\nOK\r\n", prefix: "+CSQ:", shape: at.DataRequired, want: true},
		{name: "data required ok only", input: "\r\nOK\r\n", prefix: "+CSQ:", shape: at.DataRequired, want: false},
		{name: "data required data only", input: "\r\n+CSQ: 15,99\r\n", prefix: "+CSQ:", shape: at.DataRequired, want: false},
		{name: "data required partial data line", input: "\r\nOK\r\n\r\n+QMTOPEN: 0,", prefix: "+QMTOPEN:", shape: at.DataRequired, want: false},
		{name: "data required data after ok", input: "\r\nOK\r\n\r\n+QMTOPEN: 0,0\r\n", prefix: "+QMTOPEN:", shape: at.DataRequired, want: true},
		{name: "data required other command data", input: "\r\n+CREG: 0,1\r\n\r\nOK\r\n", prefix: "+CSQ:", shape: at.DataRequired, want: false},
		{name: "data optional ok only", input: "\r\nOK\r\n", prefix: "+COPS:", shape: at.DataOptional, want: true},
		{name: "error", input: "\r\nERROR\r\n", prefix: "+CSQ:", shape: at.DataRequired, want: true},
		{name: "cme error", input: "\r\n+CME ERROR: 10\r\n", prefix: "+CPIN:", shape: at.DataRequired, want: true},
		{name: "cms error", input: "\r\n+CMS ERROR: 500\r\n", shape: at.SimpleOnly, want: true},
		{name: "cme error without terminator", input: "\r\n+CME ERROR: 1", prefix: "+CPIN:", shape: at.DataRequired, want: false},
		{name: "echo then ok", input: "AT\r\r\nOK\r\n", shape: at.SimpleOnly, want: true},
		{name: "urc before ok", input: "\r\n+QMTSTAT: 0,1\r\n\r\nOK\r\n", shape: at.SimpleOnly, want: true},
		{name: "no carrier", input: "\r\nNO CARRIER\r\n", prefix: "+QMTOPEN:", shape: at.DataRequired, want: true},
		{name: "busy", input: "\r\nBUSY\r\n", shape: at.SimpleOnly, want: true},
		{name: "no answer", input: "\r\nNO ANSWER\r\n", shape: at.DataOptional, want: true},
		{name: "no dialtone", input: "\r\nNO DIALTONE\r\n", shape: at.SimpleOnly, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := at.IsComplete([]byte(tt.input), tt.prefix, tt.shape)
			assert.Equal(t, tt.want, got)

			// Same buffer, same verdict.
			assert.Equal(t, got, at.IsComplete([]byte(tt.input), tt.prefix, tt.shape))
		})
	}
}

// classification is the comparable part of a Response; the retained bytes
// may differ when a chunk carried trailing output.
type classification struct {
	Terminated, Success bool
	Final               string
	Code                int
	HasCode             bool
	Data                string
}

func classified(t *testing.T, buf []byte) classification {
	t.Helper()
	r, err := at.Classify(buf)
	require.NoError(t, err)
	data, _ := r.Data()
	return classification{r.Terminated, r.Success, r.Final, r.Code, r.HasCode, data}
}

// Completion and classification must not depend on how the response was
// split into chunks.
func TestAccumulatorChunkingIndependence(t *testing.T) {
	responses := []struct {
		input  string
		prefix string
		shape  at.Shape
		max    int
	}{
		{"\r\n+CSQ: 15,99\r\n\r\nOK\r\n", "+CSQ:", at.DataRequired, 0},
		{"\r\nOK\r\n\r\n+QMTOPEN: 0,0\r\n", "+QMTOPEN:", at.DataRequired, 0},
		{"\r\n+CME ERROR: 10\r\n", "+CPIN:", at.DataRequired, 0},
		{"\r\nOK\r\n", "", at.SimpleOnly, 0},
		{"\r\nNO CARRIER\r\n", "", at.SimpleOnly, 0},
		{"\r\nOK\r\n\r\n+QMTSTAT: 0,1\r\n", "", at.SimpleOnly, 10},
	}

	for _, r := range responses {
		t.Run(r.input, func(t *testing.T) {
			whole := at.NewAccumulator(r.prefix, r.shape, r.max)
			state, err := whole.Append([]byte(r.input))
			require.NoError(t, err)
			require.Equal(t, at.Complete, state)
			want := classified(t, whole.Bytes())
			n := len(r.input)

			feed := func(t *testing.T, cuts ...int) {
				t.Helper()
				acc := at.NewAccumulator(r.prefix, r.shape, r.max)
				start := 0
				for _, c := range append(cuts, n) {
					_, err := acc.Append([]byte(r.input[start:c]))
					require.NoError(t, err, "cuts %v", cuts)
					start = c
				}
				if acc.State() != at.Complete {
					t.Fatalf("cuts %v: state %s, want complete", cuts, acc.State())
				}
				assert.Equal(t, want, classified(t, acc.Bytes()), "cuts %v", cuts)
			}

			// Every split into two and three chunks.
			for i := 0; i <= n; i++ {
				feed(t, i)
				for j := i; j <= n; j++ {
					feed(t, i, j)
				}
			}

			// One byte at a time.
			bytewise := make([]int, 0, n)
			for i := 1; i < n; i++ {
				bytewise = append(bytewise, i)
			}
			feed(t, bytewise...)
		})
	}
}

func TestAccumulatorCompletesBeforeCapacity(t *testing.T) {
	resp := "\r\nOK\r\n\r\n+QMTSTAT: 0,1\r\n"

	t.Run("one chunk", func(t *testing.T) {
		acc := at.NewAccumulator("", at.SimpleOnly, 10)
		state, err := acc.Append([]byte(resp))
		require.NoError(t, err)
		assert.Equal(t, at.Complete, state)
		assert.LessOrEqual(t, acc.Len(), 10)
	})

	t.Run("two chunks", func(t *testing.T) {
		acc := at.NewAccumulator("", at.SimpleOnly, 10)
		_, err := acc.Append([]byte(resp[:6]))
		require.NoError(t, err)
		state, err := acc.Append([]byte(resp[6:]))
		require.NoError(t, err)
		assert.Equal(t, at.Complete, state)
	})
}

func TestAccumulatorCompletesOnLastChunk(t *testing.T) {
	acc := at.NewAccumulator("+CSQ:", at.DataRequired, 0)

	state, err := acc.Append([]byte("\r\n+CSQ: 15,"))
	require.NoError(t, err)
	assert.Equal(t, at.Accumulating, state)

	state, err = acc.Append([]byte("99\r\n\r\nO"))
	require.NoError(t, err)
	assert.Equal(t, at.Accumulating, state)

	state, err = acc.Append([]byte("K\r\n"))
	require.NoError(t, err)
	assert.Equal(t, at.Complete, state)
	assert.Equal(t, "\r\n+CSQ: 15,99\r\n\r\nOK\r\n", string(acc.Bytes()))

	// Finished accumulators ignore further input.
	state, err = acc.Append([]byte("RING\r\n"))
	require.NoError(t, err)
	assert.Equal(t, at.Complete, state)
	assert.Equal(t, 21, acc.Len())
}

func TestAccumulatorOverflow(t *testing.T) {
	acc := at.NewAccumulator("+CSQ:", at.DataRequired, 16)

	_, err := acc.Append([]byte("\r\n+CSQ: 15,"))
	require.NoError(t, err)

	state, err := acc.Append([]byte("99\r\n\r\nOK\r\n"))
	require.ErrorIs(t, err, at.ErrOverflow)
	assert.Equal(t, at.Overflowed, state)
	assert.LessOrEqual(t, acc.Len(), 16)

	assert.Equal(t, at.Overflowed, acc.Expire())
}

func TestAccumulatorExactCapacity(t *testing.T) {
	resp := "\r\nOK\r\n"
	acc := at.NewAccumulator("", at.SimpleOnly, len(resp))

	state, err := acc.Append([]byte(resp))
	require.NoError(t, err)
	assert.Equal(t, at.Complete, state)
}

func TestAccumulatorDefaultCapacity(t *testing.T) {
	acc := at.NewAccumulator("+CSQ:", at.DataRequired, 0)
	_, err := acc.Append([]byte(strings.Repeat("x", at.MaxResponseLen)))
	require.NoError(t, err)

	_, err = acc.Append([]byte("x"))
	require.ErrorIs(t, err, at.ErrOverflow)
}

func TestAccumulatorExpireAndReset(t *testing.T) {
	acc := at.NewAccumulator("+CSQ:", at.DataRequired, 0)
	_, err := acc.Append([]byte("\r\nOK\r\n"))
	require.NoError(t, err)
	assert.Equal(t, at.Accumulating, acc.State())

	assert.Equal(t, at.TimedOut, acc.Expire())

	acc.Reset("", at.SimpleOnly)
	assert.Equal(t, at.Accumulating, acc.State())
	assert.Zero(t, acc.Len())

	state, err := acc.Append([]byte("\r\nOK\r\n"))
	require.NoError(t, err)
	assert.Equal(t, at.Complete, state)
}

func TestPromptReady(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantPrompt bool
		wantFailed bool
	}{
		{name: "nothing yet", input: "", wantPrompt: false, wantFailed: false},
		{name: "prompt", input: "\r\n> ", wantPrompt: true},
		{name: "prompt without leading crlf", input: "> ", wantPrompt: true},
		{name: "half prompt", input: "\r\n>", wantPrompt: false},
		{name: "echo then prompt", input: "AT+CMGS=\"+123\"\r\r\n> ", wantPrompt: true},
		{name: "error", input: "\r\n+CMS ERROR: 304\r\n", wantFailed: true},
		{name: "no carrier", input: "\r\nNO CARRIER\r\n", wantFailed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, failed := at.PromptReady([]byte(tt.input))
			assert.Equal(t, tt.wantPrompt, prompt)
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "accumulating", at.Accumulating.String())
	assert.Equal(t, "timed-out", at.TimedOut.String())
	assert.Equal(t, "State(9)", at.State(9).String())
}
