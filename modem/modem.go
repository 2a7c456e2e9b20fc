package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"i4.energy/across/bg95/at"
	"i4.energy/across/bg95/command"
)

// Modem drives a Quectel BG95 cellular modem over AT commands.
//
// All transport I/O is serialized through a single link: a command holds it
// from the moment its line is written until its response is complete, and
// Loop holds it for one read at a time while no command is running. A Modem
// is safe for concurrent use.
type Modem struct {
	transport Transport
	config    Config
	log       *slog.Logger

	// link is a one-slot semaphore guarding the transport.
	link chan struct{}
	// txns counts transactions, so Loop can tell that the link was used
	// between two of its reads.
	txns atomic.Uint64

	urcChan chan string

	closed      atomic.Bool
	loopRunning atomic.Bool
}

// PollConfig defines configuration for polling operations like waiting for SIM readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection and initializes the modem:
// liveness check, echo off, numeric error reports, SIM unlock and SMS text
// mode.
//
// Returns an error if the transport connection or modem initialization
// fails; the transport is closed in the latter case.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		transport: transport,
		config:    config,
		log:       config.logger.With("component", "modem"),
		link:      make(chan struct{}, 1),
		urcChan:   make(chan string, 100), // Buffered to prevent blocking on URCs
	}
	if config.skipInit {
		return m, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// Loop pumps unsolicited result codes while the modem is idle. Every
// iteration takes the link for one chunk read of at most the configured
// chunk interval, so commands are delayed by at most one chunk.
//
// URCs that arrive in the middle of a command response are forwarded by the
// command itself; Loop is only needed to see URCs between commands. It runs
// until ctx is cancelled or the transport fails, and only one Loop may run
// at a time.
//
// Usage:
//
//	modem, err := New(ctx, config)
//	if err != nil { return err }
//
//	go modem.Loop(ctx)
//	for urc := range modem.URC() { ... }
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	buf := make([]byte, 256)
	var (
		pending []byte
		seen    uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.acquire(ctx); err != nil {
			return err
		}
		// A partial line from before a transaction cannot continue after it.
		if seq := m.txns.Load(); seq != seen {
			seen = seq
			pending = nil
		}
		n, err := m.readIdle(buf)
		m.release()

		if n > 0 {
			pending = m.dispatchIdle(append(pending, buf[:n]...))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}
	}
}

func (m *Modem) readIdle(buf []byte) (int, error) {
	if err := m.transport.SetReadTimeout(m.config.chunkInterval); err != nil {
		return 0, err
	}
	return m.transport.Read(buf)
}

// dispatchIdle publishes the complete URC lines of pending and returns the
// unterminated rest.
func (m *Modem) dispatchIdle(pending []byte) []byte {
	for {
		adv, tok, _ := at.Splitter(pending, false)
		if adv == 0 {
			break
		}
		line := string(tok)
		pending = pending[adv:]
		switch {
		case at.LineType(line) == at.TypeURC:
			m.publishURC(line)
		case line != "":
			m.log.Debug("Discarding unsolicited line", "line", line)
		}
	}
	if len(pending) > m.config.maxResponse {
		m.log.Warn("Discarding unterminated input", "bytes", len(pending))
		return nil
	}
	return bytes.Clone(pending)
}

func (m *Modem) publishURC(urc string) {
	select {
	case m.urcChan <- urc:
	default:
		m.log.Warn("Dropping URC, channel full", "urc", urc)
	}
}

// URC returns a read-only channel that receives Unsolicited Result Codes.
// These are asynchronous notifications from the modem (e.g., incoming SMS,
// MQTT receive and status reports). The channel is buffered, but may drop
// some URC if not consumed fast enough.
func (m *Modem) URC() <-chan string {
	return m.urcChan
}

// Close closes the transport. A running Loop returns on its next read.
// After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	return m.transport.Close()
}

func (m *Modem) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.link <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Modem) release() {
	<-m.link
}

// init performs the initial setup sequence for the modem hardware.
func (m *Modem) init(ctx context.Context) error {
	// 1. Wake-up / sanity check
	if err := m.SendCommand(ctx, command.AT, at.Execute, nil, nil); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.SendCommand(ctx, command.ATE0, at.Execute, nil, nil); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	// Numeric codes keep RejectedError.Code populated.
	params := command.CMEEParams{Mode: command.ErrorsNumeric}
	if err := m.SendCommand(ctx, command.CMEE, at.Write, params, nil); err != nil {
		return fmt.Errorf("could not enable numeric errors: %w", err)
	}

	// 4. Check SIM status
	status, err := m.SIMStatus(ctx)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}

	switch status {
	case command.SIMReady:
		// OK

	case command.SIMPIN:
		if m.config.simPIN == "" {
			return ErrSIMPinRequired
		}
		pin := command.CPINParams{PIN: m.config.simPIN}
		if err := m.SendCommand(ctx, command.CPIN, at.Write, pin, nil); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}
		if err := m.waitForSIMReady(ctx, m.config.simPoll); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %s", status)
	}

	// 5. Select SMS text mode
	if err := m.SendCommand(ctx, command.CMGF, at.Write, command.CMGFParams{Format: command.FormatText}, nil); err != nil {
		return fmt.Errorf("set SMS text mode: %w", err)
	}

	m.log.Info("Modem initialized")
	return nil
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational.
func (m *Modem) waitForSIMReady(ctx context.Context, config PollConfig) error {
	var (
		pollInterval = config.Interval
		timeout      = config.Timeout
		maxRetries   = config.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			status, err := m.SIMStatus(ctx)
			if err != nil {
				// Fail fast on critical errors
				if errors.Is(err, ErrAlreadyClosed) || errors.Is(err, ErrTransport) {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if status == command.SIMReady {
				return nil
			}
		}
	}
}
