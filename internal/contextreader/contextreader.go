// Package contextreader wraps an io.Reader so that a blocked Read
// call returns when its context is cancelled, letting archive
// downloads and other long streaming reads be aborted promptly.
package contextreader

import (
	"context"
	"io"
)

type reader struct {
	ctx context.Context
	r   io.Reader
}

// New wraps r so that Read respects ctx's cancellation. If ctx is
// already done when Read is called, Read returns ctx.Err()
// immediately. Otherwise the underlying read proceeds in the
// background; if ctx is cancelled before it completes, Read returns
// io.EOF so callers that only check for end-of-stream still unwind
// cleanly.
func New(ctx context.Context, r io.Reader) io.Reader {
	return &reader{ctx: ctx, r: r}
}

func (c *reader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.r.Read(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-c.ctx.Done():
		return 0, io.EOF
	}
}
