// Package tasks runs fire-and-forget side effects (tracking, notifications,
// interaction logging) after the primary response has been built.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"eventhub/api/logger"
	"eventhub/api/metrics"
)

// Submitter accepts work that must never block or fail the caller.
type Submitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Pool is a bounded queue drained by a fixed set of workers. Errors are
// logged and counted; a full queue drops the task.
type Pool struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan task
	group  *errgroup.Group
}

func NewPool(workers, queueSize int, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Pool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	p := &Pool{
		log:     log.With("component", "TaskPool"),
		metrics: m,
		timeout: timeout,
		queue:   make(chan task, queueSize),
		group:   &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}
	return p
}

func (p *Pool) Submit(name string, fn func(ctx context.Context) error) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.record(name, "dropped")
		p.log.Warn("Task submitted after shutdown", "task", name)
		return false
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		return true
	default:
		p.record(name, "dropped")
		p.log.Warn("Task queue full, dropping task", "task", name)
		return false
	}
}

func (p *Pool) worker() error {
	for t := range p.queue {
		p.run(t)
	}
	return nil
}

func (p *Pool) run(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.record(t.name, "error")
			p.log.Error("Task panicked", "task", t.name, "panic", fmt.Sprint(r))
		}
	}()
	if err := t.fn(ctx); err != nil {
		p.record(t.name, "error")
		p.log.Error("Task failed", "task", t.name, "error", err)
		return
	}
	p.record(t.name, "ok")
}

func (p *Pool) record(name, outcome string) {
	if p.metrics != nil {
		p.metrics.AsyncTasks.WithLabelValues(name, outcome).Inc()
	}
}

// Shutdown stops accepting work and waits for queued tasks to finish or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("task pool shutdown: %w", ctx.Err())
	}
}

// Inline runs tasks synchronously on the caller's goroutine, logging errors.
// It keeps handler tests deterministic.
type Inline struct {
	Log *logger.Logger
}

func (i Inline) Submit(name string, fn func(ctx context.Context) error) bool {
	if err := fn(context.Background()); err != nil && i.Log != nil {
		i.Log.Error("Task failed", "task", name, "error", err)
	}
	return true
}
