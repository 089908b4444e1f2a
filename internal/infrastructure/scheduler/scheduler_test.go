package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type fakeLocker struct {
	held     map[string]bool
	released []string
	err      error
}

func (l *fakeLocker) TryLock(_ context.Context, resource string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[resource] {
		return func(context.Context) error { return nil }, false, nil
	}
	return func(context.Context) error {
		l.released = append(l.released, resource)
		return nil
	}, true, nil
}

func TestRegister(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "refresh"}

	require.NoError(t, s.Register(job, "@every 10m"))
	assert.ErrorIs(t, s.Register(job, "*/5 * * * *"), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(&countingJob{name: "bad"}, "every ten minutes"), ErrInvalidSpec)
	assert.ErrorIs(t, s.Register(nil, "@hourly"), ErrNilJob)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "refresh", jobs[0].Name)
	assert.Equal(t, "@every 10m", jobs[0].Schedule)
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := New(Config{})
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, "@hourly"))
	require.NoError(t, s.Register(failing, "@hourly"))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "failing")
	assert.EqualError(t, err, "boom")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, 1, ok.count())
	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.InDelta(t, 0.5, snap.SuccessRate, 1e-9)

	history := s.GetHistory(0)
	require.Len(t, history, 2)
	assert.Equal(t, "ok", history[0].JobName)
	assert.Equal(t, "failing", history[1].JobName)
}

func TestRunNow_SkipsWhenLockHeld(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{"job:refresh": true}}
	s := New(Config{Locker: locker})
	job := &countingJob{name: "refresh"}
	require.NoError(t, s.Register(job, "@hourly"))

	res, err := s.RunNow(context.Background(), "refresh")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, job.count())

	locker.held = nil
	res, err = s.RunNow(context.Background(), "refresh")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, job.count())
	assert.Equal(t, []string{"job:refresh"}, locker.released)
}

func TestRunNow_LockErrorFailsRun(t *testing.T) {
	s := New(Config{Locker: &fakeLocker{err: errors.New("redis down")}})
	job := &countingJob{name: "refresh"}
	require.NoError(t, s.Register(job, "@hourly"))

	res, err := s.RunNow(context.Background(), "refresh")
	assert.Error(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, job.count())
}

func TestStartStop(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerStopped)
}

func TestStart_StopsWithContext(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}
