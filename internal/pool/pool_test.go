package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

func TestAssignments_RoundRobin(t *testing.T) {
	p := New(2)
	assignments := p.Assignments(4)

	require.Len(t, assignments, 2)
	assert.Equal(t, []int{0, 2}, assignments[0], "worker 0 owns shards 0, 2")
	assert.Equal(t, []int{1, 3}, assignments[1], "worker 1 owns shards 1, 3")
}

func TestAssignments_ClampedToShardCount(t *testing.T) {
	p := New(8)
	assignments := p.Assignments(3)

	require.Len(t, assignments, 3, "workers beyond the shard count sit out")
	for i, shards := range assignments {
		assert.Equal(t, []int{i}, shards)
	}
}

func TestAssignments_EveryShardOwnedExactlyOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 5} {
		p := New(workers)
		assignments := p.Assignments(7)

		var all []int
		for _, shards := range assignments {
			all = append(all, shards...)
		}
		sort.Ints(all)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, all, "%d workers", workers)
	}
}

func TestExecute_CollectsAllResults(t *testing.T) {
	p := New(2)

	results, err := Execute(context.Background(), p, 4, func(ctx context.Context, shardID int) (int, error) {
		return shardID * 10, nil
	})

	require.NoError(t, err)
	require.Len(t, results, 4)

	byShard := make(map[int]int)
	for _, r := range results {
		byShard[r.ShardID] = r.Value
	}
	for shard := 0; shard < 4; shard++ {
		assert.Equal(t, shard*10, byShard[shard])
	}
}

func TestExecute_NoConcurrentAccessToSameShard(t *testing.T) {
	p := New(4)

	var mu sync.Mutex
	active := make(map[int]bool)

	_, err := Execute(context.Background(), p, 8, func(ctx context.Context, shardID int) (struct{}, error) {
		mu.Lock()
		require.False(t, active[shardID], "shard %d entered twice concurrently", shardID)
		active[shardID] = true
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active[shardID] = false
		mu.Unlock()
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestExecute_PartialFailureDegrades(t *testing.T) {
	p := New(2)

	results, err := Execute(context.Background(), p, 4, func(ctx context.Context, shardID int) (int, error) {
		if shardID == 2 {
			return 0, fmt.Errorf("disk on fire")
		}
		return shardID, nil
	})

	require.NoError(t, err, "a single shard failure must not abort the call")
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.NotEqual(t, 2, r.ShardID)
	}
}

func TestExecute_AllFailuresExhaustPool(t *testing.T) {
	p := New(2)

	_, err := Execute(context.Background(), p, 4, func(ctx context.Context, shardID int) (int, error) {
		return 0, fmt.Errorf("nope")
	})

	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodePoolExhausted, semerrors.GetCode(err))
}

func TestExecute_TaskTimeout(t *testing.T) {
	p := New(1, WithTaskTimeout(20*time.Millisecond))

	results, err := Execute(context.Background(), p, 2, func(ctx context.Context, shardID int) (int, error) {
		if shardID == 0 {
			select {
			case <-time.After(5 * time.Second):
				return 0, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return shardID, nil
	})

	require.NoError(t, err, "the healthy shard still completes")
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ShardID)
}

func TestExecute_ContextCancellation(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()

	_, err := Execute(ctx, p, 4, func(taskCtx context.Context, shardID int) (int, error) {
		if shardID == 0 {
			close(started)
		}
		<-taskCtx.Done()
		return 0, taskCtx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_InvalidShardCount(t *testing.T) {
	p := New(2)
	_, err := Execute(context.Background(), p, 0, func(ctx context.Context, shardID int) (int, error) {
		return 0, nil
	})
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeInvalidInput, semerrors.GetCode(err))
}

func TestNew_DefaultsToAtLeastOneWorker(t *testing.T) {
	p := New(0)
	assert.GreaterOrEqual(t, p.Workers(), 1)

	p = New(-5)
	assert.GreaterOrEqual(t, p.Workers(), 1)
}
