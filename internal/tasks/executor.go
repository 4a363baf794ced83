// Package tasks runs fire-and-forget background work.
//
// Detach is the only way to start a task and it never hands back a handle:
// the request path that schedules work cannot wait on it. Concurrency is
// bounded by a weighted semaphore; a task waiting for a slot parks its own
// goroutine, never the caller.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrShutdown is reported to the completion hook for tasks dropped during shutdown.
var ErrShutdown = errors.New("executor shut down")

// Func is a unit of background work.
type Func func(ctx context.Context) error

// CompletionHook observes every finished task.
type CompletionHook func(name string, err error)

// Executor runs detached tasks.
type Executor struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	hook   CompletionHook
	closed bool
}

// NewExecutor creates an executor allowing at most concurrency tasks to run at once.
func NewExecutor(concurrency int) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnComplete installs a hook called after each task finishes.
func (e *Executor) OnComplete(hook CompletionHook) {
	e.mu.Lock()
	e.hook = hook
	e.mu.Unlock()
}

// Detach schedules fn and returns immediately. The task's outcome is logged
// and passed to the completion hook; it is never returned to the caller.
func (e *Executor) Detach(name string, fn Func) {
	e.mu.RLock()
	closed := e.closed
	if !closed {
		e.wg.Add(1)
	}
	e.mu.RUnlock()
	if closed {
		log.Printf("WARN: task %s dropped: executor shut down", name)
		e.complete(name, ErrShutdown)
		return
	}

	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(e.ctx, 1); err != nil {
			log.Printf("WARN: task %s dropped: %v", name, err)
			e.complete(name, ErrShutdown)
			return
		}
		defer e.sem.Release(1)
		e.complete(name, e.run(name, fn))
	}()
}

func (e *Executor) run(name string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	err = fn(e.ctx)
	if err != nil {
		log.Printf("WARN: task %s failed: %v", name, err)
	}
	return err
}

func (e *Executor) complete(name string, err error) {
	e.mu.RLock()
	hook := e.hook
	e.mu.RUnlock()
	if hook != nil {
		hook(name, err)
	}
}

// Wait blocks until every scheduled task has finished. It is meant for tests
// and shutdown, never for request handlers.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight ones until ctx is
// done, after which remaining tasks are cancelled.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}
