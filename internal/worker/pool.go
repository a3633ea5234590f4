// Package worker runs fire-and-forget jobs on a fixed number of goroutines
// fed by a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull  = errors.New("worker: job queue is full")
	ErrPoolClosed = errors.New("worker: pool is closed")
)

// Job receives the pool context, which is cancelled when Shutdown gives up
// waiting.
type Job func(ctx context.Context)

type Config struct {
	Workers   int
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Workers:   10,
		QueueSize: 100,
	}
}

type Stats struct {
	Submitted uint64
	Rejected  uint64
	Completed uint64
	Abandoned uint64
	Panicked  uint64
}

type Pool struct {
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    logrus.FieldLogger

	mu     sync.RWMutex
	closed bool

	submitted atomic.Uint64
	rejected  atomic.Uint64
	started   atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// New starts cfg.Workers goroutines. Non-positive values fall back to
// DefaultConfig.
func New(cfg Config, log logrus.FieldLogger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Submit enqueues job without blocking. It fails with ErrQueueFull when the
// queue is at capacity and ErrPoolClosed after Shutdown.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.rejected.Add(1)
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued jobs to finish. If ctx ends
// first the pool context is cancelled: running jobs see it and jobs still
// queued are never started. They count as abandoned in Stats as soon as
// Shutdown returns ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		return fmt.Errorf("worker: shutdown: %w", ctx.Err())
	}
}

// Stats is a point-in-time snapshot. Once the pool context is cancelled no
// job can start, so Abandoned is final from then on.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	stats := Stats{
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
	if p.ctx.Err() != nil {
		stats.Abandoned = stats.Submitted - p.started.Load()
	}
	return stats
}

// stop cancels the pool context. Holding mu excludes a worker that is
// between its cancellation check and the started count.
func (p *Pool) stop() {
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		if !p.start() {
			continue
		}
		p.exec(id, job)
	}
}

func (p *Pool) start() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ctx.Err() != nil {
		return false
	}
	p.started.Add(1)
	return true
}

func (p *Pool) exec(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.log.WithFields(logrus.Fields{"worker": id, "panic": r}).Error("job panicked")
		}
		p.completed.Add(1)
	}()
	job(p.ctx)
}
