package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

type countingJob struct {
	name string
	err  error
	mu   sync.Mutex
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

type memLockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemLockStore() *memLockStore { return &memLockStore{data: map[string]string{}} }

func (s *memLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *memLockStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; !ok || v != expected {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	failing := &countingJob{name: "failing", err: errors.New("boom")}
	ok := &countingJob{name: "ok"}
	s, err := New(Config{
		Interval: time.Minute,
		Jobs:     []Job{failing, ok},
		Metrics:  metrics.NewJobMetrics(reg),
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	s.RunOnce(context.Background())

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "scheduled_job_runs_total"))
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	store := newMemLockStore()
	holder, err := NewRedisLock(store, "bo:lock:rollups", time.Minute)
	require.NoError(t, err)
	acquired, err := holder.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	lock, err := NewRedisLock(store, "bo:lock:rollups", time.Minute)
	require.NoError(t, err)
	job := &countingJob{name: "refresh"}
	s, err := New(Config{Interval: time.Minute, Jobs: []Job{job}, Lock: lock, Logger: testLogger()})
	require.NoError(t, err)

	s.RunOnce(context.Background())
	assert.Zero(t, job.count())

	require.NoError(t, holder.Release(context.Background()))
	s.RunOnce(context.Background())
	assert.Equal(t, 1, job.count())

	_, held := store.data["bo:lock:rollups"]
	assert.False(t, held, "lock released after the cycle")
}

func TestReleaseKeepsForeignLease(t *testing.T) {
	store := newMemLockStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	require.NoError(t, err)

	store.data["k"] = "someone-else"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "someone-else", store.data["k"])
}

func TestRunTicksUntilCancelled(t *testing.T) {
	job := &countingJob{name: "refresh"}
	s, err := New(Config{Interval: 10 * time.Millisecond, Jobs: []Job{job}, Logger: testLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return job.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

type stubRollups struct{ calls int }

func (s *stubRollups) RecomputeAll(context.Context) error { s.calls++; return nil }

func TestRollupRefreshRecomputes(t *testing.T) {
	rollups := &stubRollups{}
	job, err := NewRollupRefresh(rollups)
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, rollups.calls)

	_, err = NewRollupRefresh(nil)
	assert.Error(t, err)
}
