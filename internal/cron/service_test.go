package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
	"github.com/angelmondragon/pdalogistics-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	releases   int
	acquireErr error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, lock Lock, reg *prometheus.Registry, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return service
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestService(t, lock, reg, failure, success)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
	series, err := testutil.GatherAndCount(reg, "cron_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "only"}
	lock := &fakeLock{held: true}
	service := newTestService(t, lock, prometheus.NewRegistry(), job)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestRunOnceReportsLockFailure(t *testing.T) {
	job := &testJob{name: "only"}
	service := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, prometheus.NewRegistry(), job)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "only"}
	service := newTestService(t, &fakeLock{}, prometheus.NewRegistry(), job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})})
	assert.Error(t, err)
}

type panicJob struct{}

func (panicJob) Name() string              { return "panics" }
func (panicJob) Run(context.Context) error { panic("nil pointer") }

type slowJob struct{}

func (slowJob) Name() string { return "slow" }
func (slowJob) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunOnceRecoversPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	service := newTestService(t, &fakeLock{}, prometheus.NewRegistry(), panicJob{}, after)

	err := service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics: panic: nil pointer")
	assert.Equal(t, 1, after.runs)
}

func TestRunOnceBoundsJobDuration(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry:   NewRegistry(slowJob{}),
		Lock:       &fakeLock{},
		JobTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	err = service.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
