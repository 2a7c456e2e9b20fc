package modem

import (
	"context"
	"io"
	"sync"
	"time"
)

// TestTransport is a test helper that simulates a serial port. Reads honour
// the timeout set with SetReadTimeout and return (0, nil) when it expires,
// like go.bug.st/serial does. Replies can be scripted per written line, so a
// Loop may run concurrently with commands.
type TestTransport struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  [][]byte
	replies  map[string][][]byte
	writes   []string
	timeout  time.Duration
	closed   bool
	writeErr error
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	t := &TestTransport{
		replies: make(map[string][][]byte),
		timeout: -1,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Reply queues chunks to be read once line has been written. Each chunk is
// delivered by a separate Read.
func (t *TestTransport) Reply(line string, chunks ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range chunks {
		t.replies[line] = append(t.replies[line], []byte(c))
	}
}

// FailWrites makes every following Write return err.
func (t *TestTransport) FailWrites(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
}

// Writes returns everything written so far, one entry per Write.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	if t.writeErr != nil {
		return 0, t.writeErr
	}
	line := string(p)
	t.writes = append(t.writes, line)
	if chunks, ok := t.replies[line]; ok {
		delete(t.replies, line)
		t.pending = append(t.pending, chunks...)
		t.cond.Broadcast()
	}
	return len(p), nil
}

func (t *TestTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
	return nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timeout >= 0 && len(t.pending) == 0 && !t.closed {
		deadline := time.Now().Add(t.timeout)
		timer := time.AfterFunc(t.timeout, func() {
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		})
		defer timer.Stop()
		for len(t.pending) == 0 && !t.closed && time.Now().Before(deadline) {
			t.cond.Wait()
		}
	} else {
		for len(t.pending) == 0 && !t.closed {
			t.cond.Wait()
		}
	}

	if len(t.pending) == 0 {
		if t.closed {
			return 0, io.EOF
		}
		return 0, nil
	}
	n = copy(p, t.pending[0])
	if n < len(t.pending[0]) {
		t.pending[0] = t.pending[0][n:]
	} else {
		t.pending = t.pending[1:]
	}
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cond.Broadcast()
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.pending = append(t.pending, []byte(data))
		t.cond.Broadcast()
	}
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Transport, nil
}
