package at_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/bg95/at"
)

type clientToggle struct {
	Client int
	Enable bool
}

func toggleDescriptor() *at.Descriptor {
	return &at.Descriptor{
		Name: "XTOGGLE",
		Variants: map[at.Variant]at.Handler{
			at.Test:    {Shape: at.DataRequired},
			at.Read:    {Shape: at.DataRequired},
			at.Execute: {Shape: at.SimpleOnly},
			at.Write: {
				Shape: at.SimpleOnly,
				Format: at.FormatAs(func(w *at.ParamWriter, p clientToggle) {
					w.Int("client", p.Client, 0, 5)
					w.Bool(p.Enable)
				}),
			},
		},
	}
}

func TestFormat(t *testing.T) {
	d := toggleDescriptor()

	tests := []struct {
		name    string
		variant at.Variant
		params  any
		want    string
	}{
		{name: "test", variant: at.Test, want: "AT+XTOGGLE=?\r\n"},
		{name: "read", variant: at.Read, want: "AT+XTOGGLE?\r\n"},
		{name: "execute", variant: at.Execute, want: "AT+XTOGGLE\r\n"},
		{name: "write", variant: at.Write, params: clientToggle{Client: 2, Enable: true}, want: "AT+XTOGGLE=2,1\r\n"},
		{name: "write pointer params", variant: at.Write, params: &clientToggle{Client: 0}, want: "AT+XTOGGLE=0,0\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, at.MaxCommandLen)
			n, err := at.Format(buf, d, tt.variant, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}

func TestFormatBasic(t *testing.T) {
	d := &at.Descriptor{Name: "E0", Basic: true, Variants: map[at.Variant]at.Handler{at.Execute: {}}}

	buf := make([]byte, 16)
	n, err := at.Format(buf, d, at.Execute, nil)
	require.NoError(t, err)
	assert.Equal(t, "ATE0\r\n", string(buf[:n]))

	bare := &at.Descriptor{Basic: true, Variants: map[at.Variant]at.Handler{at.Execute: {}}}
	n, err = at.Format(buf, bare, at.Execute, nil)
	require.NoError(t, err)
	assert.Equal(t, "AT\r\n", string(buf[:n]))
}

func TestFormatErrors(t *testing.T) {
	d := toggleDescriptor()
	delete(d.Variants, at.Test)

	t.Run("out of range", func(t *testing.T) {
		buf := make([]byte, at.MaxCommandLen)
		_, err := at.Format(buf, d, at.Write, clientToggle{Client: 6})
		require.ErrorIs(t, err, at.ErrInvalidArgument)
	})

	t.Run("wrong params type", func(t *testing.T) {
		buf := make([]byte, at.MaxCommandLen)
		_, err := at.Format(buf, d, at.Write, "2,1")
		require.ErrorIs(t, err, at.ErrInvalidArgument)
	})

	t.Run("nil params", func(t *testing.T) {
		buf := make([]byte, at.MaxCommandLen)
		_, err := at.Format(buf, d, at.Write, (*clientToggle)(nil))
		require.ErrorIs(t, err, at.ErrInvalidArgument)
	})

	t.Run("unsupported variant", func(t *testing.T) {
		buf := make([]byte, at.MaxCommandLen)
		_, err := at.Format(buf, d, at.Test, nil)
		require.ErrorIs(t, err, at.ErrUnsupportedVariant)
	})

	t.Run("buffer too small clears destination", func(t *testing.T) {
		buf := []byte(strings.Repeat("#", 10))
		n, err := at.Format(buf, d, at.Write, clientToggle{Client: 2, Enable: true})
		require.ErrorIs(t, err, at.ErrBufferTooSmall)
		assert.Zero(t, n)
		assert.Equal(t, make([]byte, 10), buf)
	})

	t.Run("exact fit", func(t *testing.T) {
		buf := make([]byte, len("AT+XTOGGLE=2,1\r\n"))
		n, err := at.Format(buf, d, at.Write, clientToggle{Client: 2, Enable: true})
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
	})
}

func TestParamWriter(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w *at.ParamWriter)
		want    string
		wantErr bool
	}{
		{
			name: "mixed fields",
			write: func(w *at.ParamWriter) {
				w.Int("cid", 1, 1, 15)
				w.Quoted("pdp", "IP", 8)
				w.QuotedOrEmpty("apn", "", 64)
			},
			want: `1,"IP",""`,
		},
		{
			name: "one of",
			write: func(w *at.ParamWriter) {
				w.OneOf("fun", 4, 0, 1, 4)
			},
			want: "4",
		},
		{
			name: "one of rejects",
			write: func(w *at.ParamWriter) {
				w.OneOf("fun", 2, 0, 1, 4)
			},
			wantErr: true,
		},
		{
			name: "empty quoted",
			write: func(w *at.ParamWriter) {
				w.Quoted("topic", "", 16)
			},
			wantErr: true,
		},
		{
			name: "quoted too long",
			write: func(w *at.ParamWriter) {
				w.Quoted("host", "broker.example.com", 4)
			},
			wantErr: true,
		},
		{
			name: "embedded quote",
			write: func(w *at.ParamWriter) {
				w.QuotedOrEmpty("apn", `a"b`, 64)
			},
			wantErr: true,
		},
		{
			name: "embedded line break",
			write: func(w *at.ParamWriter) {
				w.Quoted("apn", "a\r\nAT+CFUN=0", 64)
			},
			wantErr: true,
		},
		{
			name: "first error wins",
			write: func(w *at.ParamWriter) {
				w.Int("a", 9, 0, 1)
				w.Int("b", 0, 0, 1)
			},
			want:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w at.ParamWriter
			tt.write(&w)
			if tt.wantErr {
				require.ErrorIs(t, w.Err(), at.ErrInvalidArgument)
				return
			}
			require.NoError(t, w.Err())
			assert.Equal(t, tt.want, w.String())
		})
	}
}
