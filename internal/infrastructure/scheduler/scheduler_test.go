package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	name  string
	runs  atomic.Int32
	run   func(ctx context.Context) error
	block chan struct{}
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job " + j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if j.run != nil {
		return j.run(ctx)
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(Config{})
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	job := &testJob{name: "refresh"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Hour)), ErrDuplicateJob)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&testJob{name: "other"}, nil), ErrNilSchedule)

	infos := s.Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "refresh", infos[0].Name)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
	assert.False(t, infos[0].NextRun.IsZero())
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := newTestScheduler()
	job := &testJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotStarted)
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := newTestScheduler()
	job := &testJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return s.Jobs()[0].Skipped > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobBusy)

	close(job.block)
	require.NoError(t, s.Stop())
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler()
	failing := &testJob{name: "failing", run: func(context.Context) error { return errors.New("feed down") }}
	require.NoError(t, s.Register(failing, NewIntervalSchedule(time.Hour)))

	out, err := s.RunNow(context.Background(), "failing")
	require.Error(t, err)
	assert.False(t, out.OK())
	assert.True(t, out.Manual)

	info := s.Jobs()[0]
	assert.Equal(t, int64(1), info.Runs)
	assert.Equal(t, int64(1), info.Failures)
	assert.False(t, info.Running)
	require.NotNil(t, info.Last)
	assert.EqualError(t, info.Last.Err, "feed down")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := newTestScheduler()
	job := &testJob{name: "panicky", run: func(context.Context) error { panic("boom") }}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	out, err := s.RunNow(context.Background(), "panicky")
	assert.ErrorContains(t, err, "panicked")
	assert.False(t, out.OK())
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	s := newTestScheduler()
	job := &testJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_RegisterAfterStartWakesLoop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	job := &testJob{name: "late"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, time.Second, 5*time.Millisecond)
}
