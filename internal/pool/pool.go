// Package pool runs shard-scoped work across a fixed set of workers.
//
// Each worker owns a static subset of shards for the duration of one call,
// so no two goroutines touch the same shard inside a pooled operation. The
// pool owner never reaches into shard storage itself; all access goes
// through dispatched tasks.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// DefaultTaskTimeout bounds a single shard task so a hung worker cannot
// stall the fan-in forever.
const DefaultTaskTimeout = 30 * time.Second

// Pool dispatches per-shard tasks over a fixed worker count.
type Pool struct {
	workers     int
	taskTimeout time.Duration
}

// Option configures a Pool.
type Option func(*Pool)

// WithTaskTimeout overrides the per-task timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.taskTimeout = d
		}
	}
}

// New creates a pool. workers <= 0 defaults to NumCPU-1; the count is
// clamped to [1, shardCount] at execution time.
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		workers:     workers,
		taskTimeout: DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the configured worker count before shard clamping.
func (p *Pool) Workers() int {
	return p.workers
}

// workersFor clamps the worker count to the shard count: an idle worker
// with no shards is pointless.
func (p *Pool) workersFor(shardCount int) int {
	if shardCount < 1 {
		return 1
	}
	if p.workers > shardCount {
		return shardCount
	}
	return p.workers
}

// Assignments distributes shards round-robin: worker i owns shards
// i, i+n, i+2n, ... for n workers. Deterministic for a given
// (workers, shardCount) pair.
func (p *Pool) Assignments(shardCount int) [][]int {
	n := p.workersFor(shardCount)
	assignments := make([][]int, n)
	for shard := 0; shard < shardCount; shard++ {
		worker := shard % n
		assignments[worker] = append(assignments[worker], shard)
	}
	return assignments
}

// TaskResult pairs one shard's output with its origin.
type TaskResult[T any] struct {
	ShardID int
	Value   T
	Err     error
}

// Execute fans task out across the workers' shard subsets and fans results
// in. Each invocation runs under the per-task timeout. Failed tasks are
// collected and logged as warnings — a shard failure degrades recall, it
// does not abort siblings. The call errors only when context is canceled
// or no task at all succeeded.
func Execute[T any](ctx context.Context, p *Pool, shardCount int, task func(ctx context.Context, shardID int) (T, error)) ([]TaskResult[T], error) {
	if shardCount <= 0 {
		return nil, semerrors.New(semerrors.ErrCodeInvalidInput, "shard count must be positive", nil)
	}

	assignments := p.Assignments(shardCount)
	results := make(chan TaskResult[T], shardCount)

	for _, shards := range assignments {
		go func(shards []int) {
			for _, shardID := range shards {
				results <- runTask(ctx, p.taskTimeout, shardID, task)
			}
		}(shards)
	}

	collected := make([]TaskResult[T], 0, shardCount)
	var failed int
	for i := 0; i < shardCount; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.Err != nil {
				failed++
				slog.Warn("shard_task_failed",
					slog.Int("shard", res.ShardID),
					slog.String("error", res.Err.Error()))
				continue
			}
			collected = append(collected, res)
		}
	}

	if failed == shardCount {
		return nil, semerrors.New(semerrors.ErrCodePoolExhausted,
			fmt.Sprintf("all %d shard tasks failed", shardCount), nil)
	}
	return collected, nil
}

// runTask executes one shard task under its timeout, mapping a deadline hit
// to a task-timeout error.
func runTask[T any](ctx context.Context, timeout time.Duration, shardID int, task func(ctx context.Context, shardID int) (T, error)) TaskResult[T] {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := task(taskCtx, shardID)
	if err != nil && taskCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = semerrors.New(semerrors.ErrCodeTaskTimeout,
			fmt.Sprintf("shard %d task exceeded %s", shardID, timeout), err)
	}
	return TaskResult[T]{ShardID: shardID, Value: value, Err: err}
}
