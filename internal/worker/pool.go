// Package worker runs background tasks on a fixed set of goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task receives a context that is cancelled when the pool stops.
type Task func(ctx context.Context)

// Pool is a bounded worker pool. Submit never blocks.
type Pool struct {
	tasks      chan Task
	wg         sync.WaitGroup
	maxWorkers int
	logger     zerolog.Logger

	mu      sync.RWMutex
	active  int
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool creates a pool with maxWorkers goroutines and a queue ten times that size.
func NewPool(maxWorkers int, logger zerolog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		tasks:      make(chan Task, maxWorkers*10),
		maxWorkers: maxWorkers,
		logger:     logger.With().Str("component", "worker_pool").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info().Int("max_workers", p.maxWorkers).Msg("worker pool started")
}

// Stop cancels running tasks, drains the queue and waits for workers or ctx.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Msg("worker pool stopped")
	case <-ctx.Done():
		p.logger.Warn().Msg("worker pool stop timed out")
	}
}

// Submit queues the task. It returns false when the pool is stopped or the queue is full.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		p.logger.Warn().Int("queue_capacity", cap(p.tasks)).Msg("worker pool task queue is full")
		return false
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("worker_id", id).Interface("panic", r).Msg("worker recovered from panic")
		}
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	task(p.ctx)
}

// Stats reports pool occupancy.
func (p *Pool) Stats() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]int{
		"active_workers": p.active,
		"max_workers":    p.maxWorkers,
		"queue_length":   len(p.tasks),
		"queue_capacity": cap(p.tasks),
	}
}
