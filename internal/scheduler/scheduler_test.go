package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gistblog/internal/domain"
)

type countingSyncer struct {
	calls    atomic.Int32
	err      error
	deadline atomic.Bool
}

func (c *countingSyncer) Sync(ctx context.Context) (*domain.SyncStats, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.deadline.Store(true)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &domain.SyncStats{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	syncer := &countingSyncer{}
	sched := NewScheduler(syncer, 10*time.Millisecond, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, syncer.deadline.Load())
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("boom")}
	sched := NewScheduler(syncer, 10*time.Millisecond, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sched.Start(ctx) }()

	require.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunOnceReturnsResult(t *testing.T) {
	syncer := &countingSyncer{err: domain.ErrSyncInProgress}
	sched := NewScheduler(syncer, time.Hour, time.Second, discardLogger())

	stats, err := sched.RunOnce(context.Background())
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Equal(t, int32(1), syncer.calls.Load())
}
