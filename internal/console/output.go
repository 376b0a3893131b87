package console

import (
	"io"
	"sync"
)

// Output is a writer shared by command replies and background notices such
// as dwell outcomes and countdown updates. Writes are serialised and can be
// redirected once the line editor is up.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput writes to w until redirected.
func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// Redirect sends subsequent writes to w and returns the previous writer.
func (o *Output) Redirect(w io.Writer) io.Writer {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.w
	o.w = w
	return prev
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}
