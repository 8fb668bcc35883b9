package stream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/user/sawlah/internal/api"
)

var upgrader = websocket.Upgrader{}

// fakeBackend streams fragments per task id, then closes normally. Tasks
// listed in hold keep the channel open until the client leaves.
func fakeBackend(t *testing.T, fragments map[string][]string, hold map[string]bool) (*api.Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/tools/ws/")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, f := range fragments[id] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if hold[id] {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))

	c, err := api.NewClient(ts.URL, nil)
	require.NoError(t, err)
	return c, ts
}

func waitDone(t *testing.T, acc *Accumulator) {
	t.Helper()
	require.Eventually(t, acc.Done, 2*time.Second, 5*time.Millisecond)
}

func TestAccumulatorMonotonicAppend(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	frags := []string{"Starting Nmap 7.94\n", "22/tcp open  ssh\n", "80/tcp open  http", "\n\n[Done - completed]\n"}
	c, ts := fakeBackend(t, map[string][]string{"t1": frags}, nil)
	defer ts.Close()

	acc := New(c)
	defer acc.Close()

	var snapshots []string
	require.NoError(t, acc.Connect(context.Background(), "t1"))
	for !acc.Done() {
		select {
		case <-acc.Updates():
			snapshots = append(snapshots, acc.Output())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for output")
		}
	}
	snapshots = append(snapshots, acc.Output())

	for i := 1; i < len(snapshots); i++ {
		assert.True(t, strings.HasPrefix(snapshots[i], snapshots[i-1]),
			"snapshot %d is not an extension of %d", i, i-1)
	}
	assert.Equal(t, strings.Join(frags, ""), acc.Output())
	assert.False(t, acc.Connected())
	assert.NoError(t, acc.Err())
}

func TestAccumulatorReset(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, ts := fakeBackend(t, map[string][]string{"t1": {"partial output"}}, map[string]bool{"t1": true})
	defer ts.Close()
	acc := New(c)
	defer acc.Close()

	require.NoError(t, acc.Connect(context.Background(), "t1"))
	require.Eventually(t, func() bool { return acc.Output() == "partial output" }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, acc.Connected())

	acc.Reset()
	assert.Equal(t, "", acc.Output())
	assert.Equal(t, Idle, acc.State())
	assert.False(t, acc.Connected())
	assert.Empty(t, acc.TaskID())
}

func TestConnectClosesPreviousChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c, ts := fakeBackend(t, map[string][]string{
		"old": {"old output\n"},
		"new": {"new output\n"},
	}, map[string]bool{"old": true})
	defer ts.Close()

	acc := New(c)
	defer acc.Close()

	require.NoError(t, acc.Connect(context.Background(), "old"))
	require.Eventually(t, func() bool { return acc.Len() > 0 }, 2*time.Second, 5*time.Millisecond)

	acc.Reset()
	require.NoError(t, acc.Connect(context.Background(), "new"))
	waitDone(t, acc)

	assert.Equal(t, "new output\n", acc.Output())
	assert.Equal(t, "new", acc.TaskID())
}

func TestDialFailureIsTransportError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(http.NotFoundHandler())
	c, err := api.NewClient(ts.URL, nil)
	require.NoError(t, err)
	ts.Close()

	acc := New(c)
	defer acc.Close()

	err = acc.Connect(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrTransport))
	assert.True(t, errors.Is(acc.Err(), api.ErrTransport))
	assert.Equal(t, Done, acc.State())
}

func TestConnectAfterClose(t *testing.T) {
	acc := New(nil)
	require.NoError(t, acc.Close())
	assert.ErrorIs(t, acc.Connect(context.Background(), "t1"), ErrClosed)
}

func TestTerminalWriterWritesDelta(t *testing.T) {
	var out bytes.Buffer
	tw := NewTerminalWriter(&out)

	require.NoError(t, tw.Flush("t1", "abc"))
	assert.Equal(t, 3, tw.Offset())
	require.NoError(t, tw.Flush("t1", "abcdef"))
	assert.Equal(t, 6, tw.Offset())
	require.NoError(t, tw.Flush("t1", "abcdef"))
	assert.Equal(t, "abcdef", out.String())

	// A new task starts over.
	out.Reset()
	require.NoError(t, tw.Flush("t2", "xy"))
	assert.Equal(t, "xy", out.String())
	assert.Equal(t, 2, tw.Offset())

	tw.Reset()
	assert.Zero(t, tw.Offset())
}

func TestTail(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	frags := []string{"line one\n", "line two\n", "[Done - completed]\n"}
	c, ts := fakeBackend(t, map[string][]string{"t1": frags}, nil)
	defer ts.Close()

	acc := New(c)
	defer acc.Close()
	require.NoError(t, acc.Connect(context.Background(), "t1"))

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, Tail(ctx, acc, &out))
	assert.Equal(t, strings.Join(frags, ""), out.String())
}
