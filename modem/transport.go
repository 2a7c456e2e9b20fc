package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a modem.
//
// A Transport is assumed to be already connected and ready for use. Read
// blocks for at most the duration last passed to SetReadTimeout and returns
// (0, nil) when that expires without data. An opened go.bug.st/serial port
// satisfies this contract as is.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (serial port, test
// double) and is used during modem construction only.
type Dialer interface {
	// Dial creates and returns a connected Transport. It should respect
	// cancellation of ctx.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultMode is the line setting of the BG95 main UART.
var DefaultMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// SerialDialer opens a modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	// Mode defaults to DefaultMode when nil.
	Mode *serial.Mode
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("bg95: serial port name is required")
	}
	if ctx == nil {
		return nil, errors.New("bg95: context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		m := DefaultMode
		mode = &m
	}
	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("bg95: open %s: %w", d.PortName, err)
	}
	return port, nil
}
