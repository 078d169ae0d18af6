package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nimasrn/payment-gateway/pkg/logger"
)

var (
	ErrAlreadyRunning = errors.New("worker already running for id")
	ErrClosed         = errors.New("worker registry is closed")
)

type Job = func(ctx context.Context)

// Handle tracks one running job.
type Handle struct {
	ID   string
	done chan struct{}
}

// Done is closed once the job has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Wait() {
	<-h.done
}

// Registry
// runs at most one goroutine per id. All jobs share the registry context, which
// outlives the callers that schedule them. A finished job drops its entry so
// the id can be scheduled again.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]*Handle
	closed  bool
	waiter  sync.WaitGroup
}

func NewRegistry(parent context.Context) *Registry {
	ctx, cancel := context.WithCancel(parent)
	return &Registry{
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]*Handle),
	}
}

// Go
// starts job under id unless a job with the same id is still running.
// The check and the insert happen under one lock.
func (r *Registry) Go(id string, job Job) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := r.running[id]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	h := &Handle{ID: id, done: make(chan struct{})}
	r.running[id] = h
	r.waiter.Add(1)
	r.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("worker panicked", "id", id, "panic", rec)
			}
			r.mu.Lock()
			delete(r.running, id)
			r.mu.Unlock()
			close(h.done)
			r.waiter.Done()
		}()
		job(r.ctx)
	}()

	return h, nil
}

func (r *Registry) Running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Shutdown
// stops accepting jobs and waits up to timeout for running ones. Jobs still
// running when the timeout expires see their context cancelled; Shutdown
// reports how many were left.
func (r *Registry) Shutdown(timeout time.Duration) int {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.waiter.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return 0
	case <-time.After(timeout):
	}

	left := r.Len()
	logger.Warn("worker registry shutdown timed out", "running", left, "timeout", timeout.String())
	r.cancel()
	return left
}
