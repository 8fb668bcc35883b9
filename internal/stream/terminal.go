package stream

import (
	"context"
	"io"
)

// TerminalWriter mirrors an accumulator buffer onto a writer, emitting only
// the bytes not yet written.
type TerminalWriter struct {
	w      io.Writer
	taskID string
	offset int
}

// NewTerminalWriter wraps w.
func NewTerminalWriter(w io.Writer) *TerminalWriter {
	return &TerminalWriter{w: w}
}

// Flush writes the part of buf past the current offset. A new task id, or a
// buffer shorter than the offset, starts over from zero.
func (t *TerminalWriter) Flush(taskID, buf string) error {
	if taskID != t.taskID {
		t.taskID = taskID
		t.offset = 0
	}
	if len(buf) < t.offset {
		t.offset = 0
	}
	if len(buf) == t.offset {
		return nil
	}

	n, err := io.WriteString(t.w, buf[t.offset:])
	t.offset += n
	return err
}

// Offset returns how many bytes of the buffer have been written.
func (t *TerminalWriter) Offset() int {
	return t.offset
}

// Reset forgets the written offset.
func (t *TerminalWriter) Reset() {
	t.offset = 0
	t.taskID = ""
}

// Tail copies the accumulator's output to w as it arrives and returns once
// the channel has closed. The returned error is the accumulator's transport
// error, a write error, or ctx's error.
func Tail(ctx context.Context, acc *Accumulator, w io.Writer) error {
	tw := NewTerminalWriter(w)
	for {
		if err := tw.Flush(acc.TaskID(), acc.Output()); err != nil {
			return err
		}
		if acc.State() == Done {
			// Drain whatever landed between the last flush and the close.
			if err := tw.Flush(acc.TaskID(), acc.Output()); err != nil {
				return err
			}
			return acc.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-acc.Updates():
			if !ok {
				return tw.Flush(acc.TaskID(), acc.Output())
			}
		}
	}
}
