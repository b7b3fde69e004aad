package planner

import (
	"context"
	"sync"
)

// Runner launches pipeline executions and tracks their cancel functions so a
// session can be aborted from the outside. One goroutine per session; the
// orchestrator is the session's only writer while it runs.
type Runner struct {
	orchestrator *Orchestrator

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner around an orchestrator.
func NewRunner(o *Orchestrator) *Runner {
	return &Runner{
		orchestrator: o,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Start begins the pipeline for a session in the background and returns
// immediately.
func (r *Runner) Start(s *Session) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancels[s.ID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.remove(s.ID)
		r.orchestrator.Run(ctx, s)
	}()
}

// Cancel aborts a running session's pipeline. It reports whether a pipeline
// was actually running; cancelling a finished or unknown session is a no-op.
func (r *Runner) Cancel(sessionID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every in-flight pipeline has finished. Used during
// shutdown after cancelling.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every running pipeline and waits for the goroutines to
// drain.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) remove(sessionID string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[sessionID]; ok {
		cancel()
		delete(r.cancels, sessionID)
	}
	r.mu.Unlock()
}
