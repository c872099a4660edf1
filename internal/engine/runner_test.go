package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *fakeTicker) TickAll(ctx context.Context) (int, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return 0, errors.New("store down")
	}
	return 2, nil
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(nil, time.Second, nil)
	assert.Error(t, err)
	_, err = NewRunner(&fakeTicker{}, 0, nil)
	assert.Error(t, err)
}

func TestRunnerLifecycle(t *testing.T) {
	ft := &fakeTicker{}
	r, err := NewRunner(ft, 5*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, r.State())

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return ft.calls.Load() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, r.Pause())
	assert.Equal(t, StatePaused, r.State())
	assert.Error(t, r.Pause())
	time.Sleep(10 * time.Millisecond)
	paused := ft.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, ft.calls.Load())

	require.NoError(t, r.Resume())
	assert.Error(t, r.Resume())
	require.Eventually(t, func() bool { return ft.calls.Load() > paused }, time.Second, time.Millisecond)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())

	stats := r.Stats()
	assert.Equal(t, stats.TotalRounds*2, stats.TotalTicks)
	assert.Zero(t, stats.TotalErrors)
	assert.False(t, stats.StartTime.IsZero())

	// 停止后可以重新启动
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

func TestRunnerCountsErrors(t *testing.T) {
	ft := &fakeTicker{}
	ft.fail.Store(true)
	r, err := NewRunner(ft, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	require.Eventually(t, func() bool { return r.Stats().TotalErrors >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, r.Stop())
	assert.Zero(t, r.Stats().TotalTicks)
}

func TestRunnerRestartsAfterContextDone(t *testing.T) {
	ft := &fakeTicker{}
	r, err := NewRunner(ft, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return r.State() == StateStopped }, time.Second, time.Millisecond)
	require.NoError(t, r.Stop())

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, StateRunning, r.State())
	calls := ft.calls.Load()
	require.Eventually(t, func() bool { return ft.calls.Load() > calls }, time.Second, time.Millisecond)
	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())
}
