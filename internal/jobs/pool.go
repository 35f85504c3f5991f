// Package jobs runs background work on a bounded worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

var (
	ErrQueueFull          = errors.New("job queue is full")
	ErrPoolNotStarted     = errors.New("pool not started")
	ErrPoolAlreadyStarted = errors.New("pool already started")
	ErrPoolStopped        = errors.New("pool stopped")
	ErrStopTimeout        = errors.New("timed out waiting for workers")
)

// Job is one unit of work. The context is the one passed to Start.
type Job func(ctx context.Context) error

// Pool runs jobs on a fixed number of workers fed by a bounded queue.
// Submit never blocks: when the queue is full the job is rejected.
type Pool struct {
	name      string
	workers   int
	queueSize int

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	jobs        chan Job
	group       *errgroup.Group

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	onDepth func(int)
}

// Option configures a Pool.
type Option func(*Pool)

// WithDepthObserver reports the queue depth after each submit and each
// dequeue, used for gauges.
func WithDepthObserver(fn func(depth int)) Option {
	return func(p *Pool) { p.onDepth = fn }
}

func NewPool(name string, workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{
		name:      name,
		workers:   workers,
		queueSize: queueSize,
		jobs:      make(chan Job, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.group, ctx = errgroup.WithContext(ctx)
	for range p.workers {
		p.group.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}
	p.started = true
	log.Debug("%s pool started: workers=%d queue=%d", p.name, p.workers, p.queueSize)
	return nil
}

// Submit enqueues job without blocking.
func (p *Pool) Submit(job Job) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		p.observeDepth()
		return nil
	default:
		p.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stop closes the queue and waits up to timeout for workers to drain it.
func (p *Pool) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	group := p.group
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", p.name, ErrStopTimeout)
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.observeDepth()
			p.run(ctx, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			log.Error("%s job panicked: %v", p.name, r)
		}
	}()

	if err := job(ctx); err != nil {
		p.failed.Add(1)
		log.Debug("%s job failed: %v", p.name, err)
		return
	}
	p.processed.Add(1)
}

func (p *Pool) observeDepth() {
	if p.onDepth != nil {
		p.onDepth(len(p.jobs))
	}
}

// Stats is a point-in-time snapshot of the pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Rejected   int64 `json:"rejected"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.jobs),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Rejected:   p.rejected.Load(),
	}
}
