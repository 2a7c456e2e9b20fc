package modem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"i4.energy/across/bg95/at"
)

// txnState is the progress of one command transaction.
type txnState int

const (
	stateIdle txnState = iota
	stateFormatting
	stateSending
	stateAwaitingResponse
	stateClassifying
	stateParsingData
	stateDone
	stateFailed
)

func (s txnState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFormatting:
		return "formatting"
	case stateSending:
		return "sending"
	case stateAwaitingResponse:
		return "awaiting-response"
	case stateClassifying:
		return "classifying"
	case stateParsingData:
		return "parsing-data"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("txnState(%d)", int(s))
	}
}

// transaction is the per-command working set. It owns the read scratch
// buffer and the accumulator, both dropped when the command returns.
type transaction struct {
	desc     *at.Descriptor
	variant  at.Variant
	handler  at.Handler
	log      *slog.Logger
	state    txnState
	timeout  time.Duration
	deadline time.Time
	chunk    []byte
}

func (m *Modem) newTransaction(d *at.Descriptor, v at.Variant, h at.Handler) *transaction {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = m.config.atTimeout
	}
	return &transaction{
		desc:    d,
		variant: v,
		handler: h,
		timeout: timeout,
		log: m.log.With(
			"txn", uuid.NewString(),
			"cmd", d.Command(),
			"variant", v.String(),
		),
	}
}

func (t *transaction) enter(s txnState) {
	t.state = s
	t.log.Debug("Transaction state", "state", s)
}

func (t *transaction) fail(err error) error {
	from := t.state
	t.state = stateFailed
	t.log.Warn("Command failed", "state", from, "error", err)
	return err
}

// SendCommand runs one transaction: it formats variant v of d with params,
// writes the line, accumulates the response until it is complete, classifies
// it and, when out is non-nil and the response carries the command's data
// line, parses it into out.
//
// Only waiting for the link honours ctx. Once the line is written the
// transaction ends with a complete response, ErrTimeout after d.Timeout, or
// at.ErrOverflow. A rejected command returns a *RejectedError and leaves out
// untouched, as does a failing parser.
func (m *Modem) SendCommand(ctx context.Context, d *at.Descriptor, v at.Variant, params, out any) error {
	return m.run(ctx, d, v, params, nil, out)
}

// SendWithPrompt runs a write transaction whose command asks for a payload
// with the "> " prompt. payload is written verbatim once the prompt arrives;
// text mode SMS callers append at.CtrlZ themselves.
func (m *Modem) SendWithPrompt(ctx context.Context, d *at.Descriptor, params any, payload []byte, out any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: %s: empty payload", at.ErrInvalidArgument, d.Command())
	}
	return m.run(ctx, d, at.Write, params, payload, out)
}

// Query runs SendCommand with a freshly allocated result.
func Query[R any](ctx context.Context, m *Modem, d *at.Descriptor, v at.Variant, params any) (*R, error) {
	var out R
	if err := m.SendCommand(ctx, d, v, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Modem) run(ctx context.Context, d *at.Descriptor, v at.Variant, params any, payload []byte, out any) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}
	h, err := d.Lookup(v)
	if err != nil {
		return err
	}
	if out != nil && h.Parse == nil {
		return fmt.Errorf("%w: %s %s has no result", at.ErrInvalidArgument, d.Command(), v)
	}

	txn := m.newTransaction(d, v, h)
	txn.enter(stateIdle)

	txn.enter(stateFormatting)
	line := make([]byte, at.MaxCommandLen)
	n, err := at.Format(line, d, v, params)
	if err != nil {
		return txn.fail(err)
	}

	if err := m.acquire(ctx); err != nil {
		return txn.fail(fmt.Errorf("%s: waiting for link: %w", d.Command(), err))
	}
	defer m.release()
	m.txns.Add(1)

	txn.deadline = time.Now().Add(txn.timeout)
	txn.chunk = make([]byte, 256)

	r, err := m.exchange(txn, line[:n], payload)
	if err != nil {
		return txn.fail(err)
	}

	if out != nil {
		if _, ok := r.Payload(d.DataPrefix()); ok {
			txn.enter(stateParsingData)
			if err := h.Parse(r, out); err != nil {
				return txn.fail(fmt.Errorf("parse %s: %w", d.Command(), err))
			}
		}
	}
	txn.enter(stateDone)
	return nil
}

func (m *Modem) exchange(txn *transaction, line, payload []byte) (at.Response, error) {
	cmd := txn.desc.Command()

	txn.enter(stateSending)
	if err := m.write(line); err != nil {
		return at.Response{}, fmt.Errorf("write %s: %w", cmd, err)
	}

	acc := at.NewAccumulator(txn.desc.DataPrefix(), txn.handler.Shape, m.config.maxResponse)
	txn.enter(stateAwaitingResponse)

	if payload != nil {
		if err := m.awaitPrompt(txn, acc); err != nil {
			return at.Response{}, err
		}
		acc.Reset(txn.desc.DataPrefix(), txn.handler.Shape)
		if err := m.write(payload); err != nil {
			return at.Response{}, fmt.Errorf("write %s payload: %w", cmd, err)
		}
	}

	for acc.State() != at.Complete {
		if err := m.readChunk(txn, acc); err != nil {
			return at.Response{}, err
		}
	}

	txn.enter(stateClassifying)
	return m.classify(txn, acc.Bytes())
}

func (m *Modem) classify(txn *transaction, buf []byte) (at.Response, error) {
	r, err := at.Classify(buf)
	if err != nil {
		return r, fmt.Errorf("%s: %w", txn.desc.Command(), err)
	}
	for _, urc := range at.URCs(buf) {
		m.publishURC(urc)
	}
	if !r.Success {
		return r, &RejectedError{
			Command: txn.desc.Command(),
			Final:   r.Final,
			Code:    r.Code,
			HasCode: r.HasCode,
		}
	}
	return r, nil
}

// awaitPrompt reads until the data input prompt. A failure result ends the
// wait with a *RejectedError; any other final result with ErrNoPrompt.
func (m *Modem) awaitPrompt(txn *transaction, acc *at.Accumulator) error {
	for {
		prompt, failed := at.PromptReady(acc.Bytes())
		switch {
		case prompt:
			txn.log.Debug("Data input prompt received")
			return nil
		case failed:
			txn.enter(stateClassifying)
			_, err := m.classify(txn, acc.Bytes())
			return err
		case at.IsComplete(acc.Bytes(), "", at.SimpleOnly):
			return fmt.Errorf("%s: %w", txn.desc.Command(), ErrNoPrompt)
		}

		if err := m.readChunk(txn, acc); err != nil {
			if errors.Is(err, ErrTimeout) {
				return fmt.Errorf("%w: %w", ErrNoPrompt, err)
			}
			return err
		}
	}
}

// readChunk performs one transport read bounded by the chunk interval and
// the remaining budget, and feeds what arrived to acc.
func (m *Modem) readChunk(txn *transaction, acc *at.Accumulator) error {
	remaining := time.Until(txn.deadline)
	if remaining <= 0 {
		acc.Expire()
		return fmt.Errorf("%s after %s (%d bytes received): %w", txn.desc.Command(), txn.timeout, acc.Len(), ErrTimeout)
	}
	if err := m.transport.SetReadTimeout(min(m.config.chunkInterval, remaining)); err != nil {
		return fmt.Errorf("%w: set read timeout: %w", ErrTransport, err)
	}

	n, err := m.transport.Read(txn.chunk)
	if n > 0 {
		if _, aerr := acc.Append(txn.chunk[:n]); aerr != nil {
			return fmt.Errorf("%s: %w", txn.desc.Command(), aerr)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrTransport, txn.desc.Command(), err)
	}
	return nil
}

func (m *Modem) write(p []byte) error {
	if _, err := m.transport.Write(p); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}
