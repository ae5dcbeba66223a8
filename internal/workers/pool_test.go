package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())
	pool.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		pool.Submit("test.job", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	assert.Eventually(t, func() bool {
		return ran.Load() == 5
	}, time.Second, 10*time.Millisecond)
}

func TestPoolSurvivesFailingAndPanickingJobs(t *testing.T) {
	pool := NewPool(1, 16, zap.NewNop())
	pool.Start(context.Background())

	pool.Submit("test.fail", func(context.Context) error {
		return errors.New("expected failure")
	})
	pool.Submit("test.panic", func(context.Context) error {
		panic("expected panic")
	})

	var ran atomic.Bool
	pool.Submit("test.after", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	assert.Eventually(t, ran.Load, time.Second, 10*time.Millisecond)
}

func TestPoolDropsJobsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, zap.NewNop())
	// Pool not started: the queue holds one job, extras must be dropped
	// without blocking.

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			pool.Submit("test.overflow", func(context.Context) error { return nil })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestPoolStopWaitsForWorkers(t *testing.T) {
	pool := NewPool(2, 16, zap.NewNop())
	pool.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		pool.Submit("test.job", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	pool.Stop()
	assert.Equal(t, int32(3), ran.Load())
}
