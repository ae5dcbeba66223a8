package workers

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type job struct {
	name string
	fn   func(ctx context.Context) error
}

// Pool runs post-commit side effects (audit, notifications, reminders,
// attachment promotion) off the request path. Submission never blocks:
// when the queue is full the job is dropped and logged.
type Pool struct {
	jobs   chan job
	size   int
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

func NewPool(size, queueLen int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		jobs:   make(chan job, queueLen),
		size:   size,
		logger: logger.Sugar(),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(ctx, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("Background job panicked", "job", j.name, "panic", r)
		}
	}()
	if err := j.fn(ctx); err != nil {
		p.logger.Errorw("Background job failed", "job", j.name, "error", err)
	}
}

func (p *Pool) Submit(name string, fn func(ctx context.Context) error) {
	select {
	case p.jobs <- job{name: name, fn: fn}:
	default:
		p.logger.Warnw("Background job queue full, dropping job", "job", name)
	}
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
