package mutator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds a single detached remote write.
const DefaultTaskTimeout = 30 * time.Second

// Tasks runs fire-and-forget remote writes. Each task gets its own background context,
// so it outlives the request that started it; failures are logged and never returned.
type Tasks struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewTasks creates a task runner logging failures to logger.
func NewTasks(logger *zap.Logger, timeout time.Duration) *Tasks {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Tasks{logger: logger, timeout: timeout}
}

// Go starts fn in its own goroutine.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error, fields ...zap.Field) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			t.logger.Error("detached write failed", append(fields, zap.String("task", name), zap.Error(err))...)
		}
	}()
}

// Wait blocks until every started task has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
