package pipeline

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type Task func(ctx context.Context) error

type Result struct {
	Err error
}

// WorkerPool runs submitted tasks on a fixed number of goroutines, optionally
// paced by a shared token bucket.
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	limiter *rate.Limiter
	closeMu sync.Once
}

func NewWorkerPool(workers, buffer int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, buffer),
	}
}

// SetRateLimit caps task starts per second across all workers. rps <= 0
// removes the cap.
func (p *WorkerPool) SetRateLimit(rps float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if rps <= 0 {
		p.limiter = nil
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Submit blocks while the buffer is full. It returns false once ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, t Task) bool {
	if p == nil || t == nil {
		return false
	}
	select {
	case p.tasks <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *WorkerPool) drain(ctx context.Context) {
	for t := range p.tasks {
		_ = t(ctx)
	}
}

func (p *WorkerPool) Close() {
	if p == nil {
		return
	}
	p.closeMu.Do(func() { close(p.tasks) })
}

// Run starts the workers. Once ctx is done, tasks still buffered are run with
// the cancelled context so they can hand back what they hold, and the workers
// stop when Close is called.
func (p *WorkerPool) Run(ctx context.Context) <-chan Result {
	buf := p.workers * 64
	if buf < 1 {
		buf = 1
	}
	out := make(chan Result, buf)
	if p == nil {
		close(out)
		return out
	}

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.drain(ctx)
					return
				case t, ok := <-p.tasks:
					if !ok {
						return
					}
					p.mu.RLock()
					limiter := p.limiter
					p.mu.RUnlock()
					if limiter != nil {
						if err := limiter.Wait(ctx); err != nil {
							_ = t(ctx)
							p.drain(ctx)
							return
						}
					}
					err := t(ctx)
					select {
					case <-ctx.Done():
						p.drain(ctx)
						return
					case out <- Result{Err: err}:
					}
				}
			}
		}()
	}

	go func() {
		p.wg.Wait()
		close(out)
	}()

	return out
}
