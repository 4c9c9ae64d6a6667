// Package pool provides a bounded goroutine pool and pooled buffers
// for fire-and-forget background work such as telemetry delivery.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// GoroutinePool 固定数量的 worker 消费有界队列；队列满时 Submit 立即拒绝，
// 调用方永远不会被阻塞。
type GoroutinePool struct {
	taskQueue chan Task
	baseCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	taskTimeout  time.Duration
	panicHandler func(any)
	errorHandler func(error)
	workers      int
}

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	MaxWorkers   int           `json:"max_workers"`
	QueueSize    int           `json:"queue_size"`
	TaskTimeout  time.Duration `json:"task_timeout"`
	PanicHandler func(any)     `json:"-"`
	ErrorHandler func(error)   `json:"-"`
}

// DefaultGoroutinePoolConfig returns defaults sized for a single kiosk.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers:  2,
		QueueSize:   64,
		TaskTimeout: 10 * time.Second,
	}
}

// NewGoroutinePool creates the pool and starts its workers.
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &GoroutinePool{
		taskQueue:    make(chan Task, config.QueueSize),
		baseCtx:      ctx,
		cancel:       cancel,
		taskTimeout:  config.TaskTimeout,
		panicHandler: config.PanicHandler,
		errorHandler: config.ErrorHandler,
		workers:      config.MaxWorkers,
	}
	p.wg.Add(config.MaxWorkers)
	for range config.MaxWorkers {
		go p.worker()
	}
	return p
}

// Submit enqueues a task without blocking.
func (p *GoroutinePool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.taskQueue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *GoroutinePool) worker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.active.Add(1)
		err := p.execute(task)
		p.active.Add(-1)
		if err != nil {
			p.failed.Add(1)
			if p.errorHandler != nil {
				p.errorHandler(err)
			}
			continue
		}
		p.completed.Add(1)
	}
}

func (p *GoroutinePool) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	ctx := p.baseCtx
	if p.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.taskTimeout)
		defer cancel()
	}
	return task(ctx)
}

// Close stops accepting tasks and drains the queue. When ctx expires first,
// in-flight tasks see a cancelled context and Close returns ctx.Err().
func (p *GoroutinePool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   p.workers,
		Active:    int(p.active.Load()),
		Queued:    len(p.taskQueue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
