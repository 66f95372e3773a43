// Package workers provides named, fixed-size worker pools with bounded
// queues for backend calls, batch learning and cache warmup.
package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned by Submit when the pool's queue has no room.
var ErrQueueFull = eris.New("workers: queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = eris.New("workers: pool closed")

// Task is a unit of work. The context is the pool's; it is canceled on Close
// only if the pool was created with a cancelable parent.
type Task func(ctx context.Context)

// Stats is a snapshot of a pool's counters.
type Stats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Rejected  int64  `json:"rejected"`
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	name    string
	workers int
	queue   chan Task
	g       *errgroup.Group

	mu     sync.RWMutex
	closed bool

	active    atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
}

// New starts a pool with the given number of workers and queue capacity.
// Workers run until Close is called and the queue drains.
func New(ctx context.Context, name string, workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{
		name:    name,
		workers: workers,
		queue:   make(chan Task, queue),
		g:       &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		p.g.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
	return p
}

func (p *Pool) run(ctx context.Context) {
	for task := range p.queue {
		p.active.Add(1)
		p.exec(ctx, task)
		p.active.Add(-1)
		p.completed.Add(1)
	}
}

func (p *Pool) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("workers: task panicked",
				zap.String("pool", p.name),
				zap.Any("panic", r),
			)
		}
	}()
	task(ctx)
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		p.rejected.Add(1)
		return eris.Wrapf(ErrQueueFull, "pool %s", p.name)
	}
}

// Close stops accepting tasks and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	_ = p.g.Wait()
	zap.L().Debug("workers: pool closed",
		zap.String("pool", p.name),
		zap.Int64("completed", p.completed.Load()),
	)
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Stats snapshots the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Workers:   p.workers,
		Queued:    len(p.queue),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
