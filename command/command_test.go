package command_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
)

// format returns the complete command line of variant v.
func format(t *testing.T, d *at.Descriptor, v at.Variant, params any) (string, error) {
	t.Helper()
	buf := make([]byte, at.MaxCommandLen)
	n, err := at.Format(buf, d, v, params)
	return string(buf[:n]), err
}

// parse classifies raw and runs the parser of variant v into out.
func parse(t *testing.T, d *at.Descriptor, v at.Variant, raw string, out any) error {
	t.Helper()
	h, err := d.Lookup(v)
	require.NoError(t, err)
	require.NotNil(t, h.Parse, "%s %s has no parser", d.Command(), v)
	require.True(t, at.IsComplete([]byte(raw), d.DataPrefix(), h.Shape), "incomplete response %q", raw)
	r, err := at.Classify([]byte(raw))
	require.NoError(t, err)
	return h.Parse(r, out)
}

func TestRegistry(t *testing.T) {
	r := command.Registry()
	require.NotNil(t, r)
	assert.Equal(t, len(command.All()), r.Len())
	assert.Same(t, r, command.Registry())

	for _, d := range command.All() {
		t.Run(d.Command(), func(t *testing.T) {
			require.NoError(t, d.Validate())
			got, ok := r.Descriptor(d.Name)
			require.True(t, ok)
			assert.Same(t, d, got)
			assert.Positive(t, d.Timeout)
			assert.NotEmpty(t, d.Description)
			for v, h := range d.Variants {
				if h.Shape == at.DataRequired {
					assert.NotNil(t, h.Parse, "%s %s requires data but has no parser", d.Command(), v)
				}
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := command.Registry()

	d, h, err := r.Lookup("CSQ", at.Execute)
	require.NoError(t, err)
	assert.Same(t, command.CSQ, d)
	assert.Equal(t, at.DataRequired, h.Shape)

	_, _, err = r.Lookup("CSQ", at.Write)
	assert.ErrorIs(t, err, at.ErrUnsupportedVariant)

	_, _, err = r.Lookup("NOPE", at.Execute)
	assert.ErrorIs(t, err, at.ErrUnsupportedVariant)
}

func TestBasicCommands(t *testing.T) {
	line, err := format(t, command.AT, at.Execute, nil)
	require.NoError(t, err)
	assert.Equal(t, "AT\r\n", line)

	line, err = format(t, command.ATE0, at.Execute, nil)
	require.NoError(t, err)
	assert.Equal(t, "ATE0\r\n", line)
}

func TestGeneralCommands(t *testing.T) {
	tests := []struct {
		name   string
		d      *at.Descriptor
		params any
		want   string
	}{
		{name: "numeric errors", d: command.CMEE, params: command.CMEEParams{Mode: command.ErrorsNumeric}, want: "AT+CMEE=1\r\n"},
		{name: "full functionality", d: command.CFUN, params: command.CFUNParams{Fun: command.FunFull}, want: "AT+CFUN=1\r\n"},
		{name: "rf off", d: command.CFUN, params: command.CFUNParams{Fun: command.FunDisableRF}, want: "AT+CFUN=4\r\n"},
		{name: "text mode", d: command.CMGF, params: command.CMGFParams{Format: command.FormatText}, want: "AT+CMGF=1\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := format(t, tt.d, at.Write, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, line)
		})
	}

	t.Run("invalid functionality", func(t *testing.T) {
		_, err := format(t, command.CFUN, at.Write, command.CFUNParams{Fun: 2})
		assert.ErrorIs(t, err, at.ErrInvalidArgument)
	})

	t.Run("read error mode", func(t *testing.T) {
		var out command.CMEEResult
		require.NoError(t, parse(t, command.CMEE, at.Read, "+CMEE: 2\r\n\r\nOK\r\n", &out))
		assert.Equal(t, command.ErrorsVerbose, out.Mode)
		assert.Equal(t, "verbose", out.Mode.String())
	})

	t.Run("read functionality", func(t *testing.T) {
		var out command.CFUNResult
		require.NoError(t, parse(t, command.CFUN, at.Read, "+CFUN: 1\r\n\r\nOK\r\n", &out))
		assert.Equal(t, command.FunFull, out.Fun)
	})

	t.Run("read message format", func(t *testing.T) {
		var out command.CMGFResult
		require.NoError(t, parse(t, command.CMGF, at.Read, "+CMGF: 0\r\n\r\nOK\r\n", &out))
		assert.Equal(t, command.FormatPDU, out.Format)
		assert.True(t, out.Present.Has(command.ValueKnown))
	})

	t.Run("out of range leading values are absent", func(t *testing.T) {
		var cmee command.CMEEResult
		require.NoError(t, parse(t, command.CMEE, at.Read, "+CMEE: 5\r\n\r\nOK\r\n", &cmee))
		assert.False(t, cmee.Present.Has(command.ValueKnown))

		var cfun command.CFUNResult
		require.NoError(t, parse(t, command.CFUN, at.Read, "+CFUN: 3\r\n\r\nOK\r\n", &cfun))
		assert.False(t, cfun.Present.Has(command.ValueKnown))

		var cmgf command.CMGFResult
		require.NoError(t, parse(t, command.CMGF, at.Read, "+CMGF: 9\r\n\r\nOK\r\n", &cmgf))
		assert.False(t, cmgf.Present.Has(command.ValueKnown))
	})

	t.Run("non-numeric leading value fails", func(t *testing.T) {
		var out command.CFUNResult
		assert.ErrorIs(t, parse(t, command.CFUN, at.Read, "+CFUN: on\r\n\r\nOK\r\n", &out), at.ErrInvalidResponse)
	})
}

// feedChunks delivers raw to a fresh accumulator split at cuts and parses
// the completed response into out.
func feedChunks(t *testing.T, d *at.Descriptor, v at.Variant, raw string, out any, cuts ...int) {
	t.Helper()
	h, err := d.Lookup(v)
	require.NoError(t, err)
	acc := at.NewAccumulator(d.DataPrefix(), h.Shape, 0)
	start := 0
	for _, c := range append(cuts, len(raw)) {
		_, err := acc.Append([]byte(raw[start:c]))
		require.NoError(t, err)
		start = c
	}
	require.Equal(t, at.Complete, acc.State(), "cuts %v", cuts)
	r, err := at.Classify(acc.Bytes())
	require.NoError(t, err)
	require.NoError(t, h.Parse(r, out), "cuts %v", cuts)
}

func TestParseChunkingIndependence(t *testing.T) {
	t.Run("CSQ", func(t *testing.T) {
		raw := "\r\n+CSQ: 50,3\r\n\r\nOK\r\n"
		var want command.Signal
		feedChunks(t, command.CSQ, at.Execute, raw, &want)
		assert.Equal(t, command.SignalBER, want.Present)

		for i := 0; i <= len(raw); i++ {
			for j := i; j <= len(raw); j++ {
				var got command.Signal
				feedChunks(t, command.CSQ, at.Execute, raw, &got, i, j)
				assert.Equal(t, want, got, "cuts %d,%d", i, j)
			}
		}
	})

	t.Run("QMTOPEN", func(t *testing.T) {
		raw := "\r\nOK\r\n\r\n+QMTOPEN: 1,3\r\n"
		var want command.QMTOPENResult
		feedChunks(t, command.QMTOPEN, at.Write, raw, &want)
		assert.Equal(t, command.OpenPDPFailed, want.Result)

		for i := 0; i <= len(raw); i++ {
			for j := i; j <= len(raw); j++ {
				var got command.QMTOPENResult
				feedChunks(t, command.QMTOPEN, at.Write, raw, &got, i, j)
				assert.Equal(t, want, got, "cuts %d,%d", i, j)
			}
		}
	})
}

// TestPDPContextRoundTrip defines contexts, answers the read with the same
// values and expects them back unchanged.
func TestPDPContextRoundTrip(t *testing.T) {
	params := []command.CGDCONTParams{
		{CID: 1, Type: command.PDPIP, APN: "internet"},
		{CID: 2, Type: command.PDPIPv4v6, APN: "ims", Address: "10.0.0.1", DataComp: 2, HeadComp: 4},
		{CID: 15, Type: command.PDPNonIP, APN: "nidd.iot", HeadComp: 1},
	}
	for _, p := range params {
		t.Run(p.APN, func(t *testing.T) {
			line, err := format(t, command.CGDCONT, at.Write, p)
			require.NoError(t, err)

			payload := strings.TrimSuffix(strings.TrimPrefix(line, "AT+CGDCONT="), at.CRLF)
			var out command.CGDCONTResult
			require.NoError(t, parse(t, command.CGDCONT, at.Read, "+CGDCONT: "+payload+"\r\n\r\nOK\r\n", &out))

			got, ok := out.Context(p.CID)
			require.True(t, ok)
			assert.Equal(t, p.Type, got.Type)
			assert.Equal(t, p.APN, got.APN)
			assert.Equal(t, p.Address, got.Address)
			assert.Equal(t, p.DataComp, got.DataComp)
			assert.Equal(t, p.HeadComp, got.HeadComp)
			assert.True(t, got.Present.Has(command.ContextHasType|command.ContextHasAPN|command.ContextHasDataComp|command.ContextHasHeadComp))
		})
	}
}
