package crawler

import "context"

// Handle tracks one background crawl run: callers can cancel it, wait
// for it, or poll progress through the progress repository.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	// Written once by the run goroutine before done is closed.
	result Result
	err    error
}

// Done is closed when the run has finished and released the running
// flag.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel signals the run to stop at its next suspension point.
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the run finishes and returns its outcome.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.result, h.err
}

// Start launches a crawl in the background. The running flag is
// claimed synchronously, so a second Start while one run is active
// fails immediately with ErrAlreadyRunning. The returned Handle
// outlives ctx: cancellation of the caller's request context does not
// stop the run, only Handle.Cancel does.
func (c *Coordinator) Start(ctx context.Context, startIndex int64) (*Handle, error) {
	if err := c.claim(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		defer close(h.done)
		h.result, h.err = c.run(runCtx, startIndex)
	}()
	return h, nil
}
