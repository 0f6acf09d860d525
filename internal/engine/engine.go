// ABOUTME: Single serializing run loop for all store access
// ABOUTME: Mutations and reads are enqueued as closures and executed one at a time

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("engine closed")

// Engine drains a queue of closures on one goroutine. Connection
// handling may be concurrent, but every touch of the store funnels
// through here, so no two units of work ever interleave and no reader
// sees a half-applied mutation. Once a unit is accepted it runs to
// completion; there is no cancellation of queued work.
type Engine struct {
	tasks   chan func()
	stopped chan struct{}
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New starts the run loop. queueDepth bounds how many units may wait;
// submitters block once it fills. Pass nil logger for the default.
func New(queueDepth int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	e := &Engine{
		tasks:   make(chan func(), queueDepth),
		stopped: make(chan struct{}),
		logger:  logger.With("component", "engine"),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.stopped)
	for task := range e.tasks {
		task()
	}
}

// Do submits fn and waits for it to finish. ctx only gates admission
// to the queue; accepted work always runs.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	if err := e.submit(ctx, wrapped); err != nil {
		return err
	}
	<-done
	return nil
}

// Enqueue submits fn without waiting for it to run.
func (e *Engine) Enqueue(ctx context.Context, fn func()) error {
	return e.submit(ctx, fn)
}

func (e *Engine) submit(ctx context.Context, fn func()) error {
	// The send happens under the same lock Close takes before closing
	// the channel, so a send on a closed channel is impossible.
	// Submitters serialize here, which is the contract anyway.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case e.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for everything already queued
// to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.stopped
		return
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()
	<-e.stopped
	e.logger.Debug("run loop stopped")
}
