// Package stream accumulates the live output of a running task delivered
// over its WebSocket push channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/util"
)

// State is the lifecycle of one accumulator.
type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Done
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

const closeGrace = 500 * time.Millisecond

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("accumulator closed")

// Endpoint resolves the push channel of a task.
type Endpoint interface {
	TaskOutputURL(taskID string) string
	AuthHeader() http.Header
}

// Accumulator owns at most one open output channel and the text received on
// it. Appends are verbatim and in arrival order.
type Accumulator struct {
	endpoint Endpoint
	dialer   *websocket.Dialer

	mu     sync.Mutex
	buf    strings.Builder
	state  State
	taskID string
	err    error
	conn   *websocket.Conn
	gen    uint64
	closed bool

	updates chan struct{}
	wg      sync.WaitGroup
}

// New creates an idle accumulator.
func New(endpoint Endpoint) *Accumulator {
	return &Accumulator{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		updates:  make(chan struct{}, 1),
	}
}

// Connect closes any open channel and opens the channel of taskID. The
// buffer is kept; call Reset first to start from an empty view.
func (a *Accumulator) Connect(ctx context.Context, taskID string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.closeConnLocked()
	a.state = Connecting
	a.taskID = taskID
	a.err = nil
	gen := a.gen
	a.notifyLocked()
	a.mu.Unlock()

	url := a.endpoint.TaskOutputURL(taskID)
	util.Debug("stream: connecting to %s", url)

	conn, resp, err := a.dialer.DialContext(ctx, url, a.endpoint.AuthHeader())
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		// Reset or another Connect won the race.
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		a.state = Done
		if ctx.Err() != nil {
			a.err = ctx.Err()
		} else {
			a.err = fmt.Errorf("stream %s: %w: %w", taskID, api.ErrTransport, err)
		}
		a.notifyLocked()
		util.Warn("stream: dial %s failed: %v", taskID, err)
		return a.err
	}

	a.conn = conn
	a.state = Streaming
	a.notifyLocked()

	a.wg.Add(1)
	go a.read(ctx, conn, gen)
	return nil
}

func (a *Accumulator) read(ctx context.Context, conn *websocket.Conn, gen uint64) {
	defer a.wg.Done()

	stop := context.AfterFunc(ctx, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if gen == a.gen {
			a.closeConnLocked()
			a.state = Done
			a.notifyLocked()
		}
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()

		a.mu.Lock()
		if gen != a.gen {
			a.mu.Unlock()
			return
		}
		if err != nil {
			a.conn = nil
			a.state = Done
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				a.err = fmt.Errorf("stream %s: %w: %w", a.taskID, api.ErrTransport, err)
				util.Debug("stream: %s closed abnormally: %v", a.taskID, err)
			}
			conn.Close()
			a.notifyLocked()
			a.mu.Unlock()
			return
		}
		a.buf.Write(data)
		a.notifyLocked()
		a.mu.Unlock()
	}
}

// closeConnLocked drops the open channel and invalidates its reader.
func (a *Accumulator) closeConnLocked() {
	a.gen++
	if a.conn != nil {
		_ = a.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGrace))
		a.conn.Close()
		a.conn = nil
	}
}

func (a *Accumulator) notifyLocked() {
	if a.closed {
		return
	}
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

// Reset clears the buffer, drops any open channel and returns to Idle.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeConnLocked()
	a.buf.Reset()
	a.state = Idle
	a.taskID = ""
	a.err = nil
	a.notifyLocked()
}

// Disconnect closes the open channel and keeps the buffer.
func (a *Accumulator) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeConnLocked()
	if a.state == Connecting || a.state == Streaming {
		a.state = Done
	}
	a.notifyLocked()
}

// Close releases the accumulator. It waits for the reader to exit and then
// closes the Updates channel.
func (a *Accumulator) Close() error {
	a.Disconnect()
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.updates)
	}
	return nil
}

// Updates signals after every append or state change. Signals coalesce.
func (a *Accumulator) Updates() <-chan struct{} {
	return a.updates
}

// Output returns the accumulated text.
func (a *Accumulator) Output() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Len returns the buffer length in bytes.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len()
}

// State returns the current lifecycle state.
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Connected reports whether a channel is open and streaming.
func (a *Accumulator) Connected() bool {
	return a.State() == Streaming
}

// Done reports whether the last channel has closed.
func (a *Accumulator) Done() bool {
	return a.State() == Done
}

// TaskID returns the task the accumulator was last connected to.
func (a *Accumulator) TaskID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.taskID
}

// Err returns the transport failure that ended the last channel, if any.
func (a *Accumulator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
