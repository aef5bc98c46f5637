// Package lifecycle coordinates startup and shutdown of long-lived subsystems.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator runs named startup hooks concurrently and tracks their outcome.
// The service is ready only when every startup hook has returned without error.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup

	mu       sync.RWMutex
	ready    bool
	failures []error
}

// New creates a Coordinator whose context is cancelled by Shutdown.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context returns the coordinator's context, cancelled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup registers a named hook to run concurrently during startup.
// A returned error is recorded and keeps the coordinator from becoming ready.
func (c *Coordinator) OnStartup(name string, fn func(ctx context.Context) error) {
	c.startup.Go(func() {
		if err := fn(c.ctx); err != nil {
			c.mu.Lock()
			c.failures = append(c.failures, fmt.Errorf("%s: %w", name, err))
			c.mu.Unlock()
		}
	})
}

// OnShutdown registers a hook that runs after the context is cancelled.
func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdown.Go(func() {
		<-c.ctx.Done()
		fn()
	})
}

// Ready reports whether startup finished without failures.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until every startup hook has returned and returns
// the joined hook failures, if any.
func (c *Coordinator) WaitForStartup() error {
	c.startup.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	err := errors.Join(c.failures...)
	c.ready = err == nil
	return err
}

// Shutdown cancels the context and waits for shutdown hooks to complete
// within the given timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
