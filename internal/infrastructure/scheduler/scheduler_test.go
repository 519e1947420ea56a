package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestRegister_Validation(t *testing.T) {
	s := New(zerolog.Nop())

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(&countingJob{name: "a"}, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
}

func TestStartStop_Lifecycle(t *testing.T) {
	s := New(zerolog.Nop())

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestDueJobRuns(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "poll"}
	require.NoError(t, s.Register(job, NewImmediateIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestFailingJobIsRescheduled(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "poll", err: context.DeadlineExceeded}
	require.NoError(t, s.Register(job, NewImmediateIntervalSchedule(time.Second)))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIntervalSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	plain := NewIntervalSchedule(5 * time.Minute)
	assert.Equal(t, now.Add(5*time.Minute), plain.Next(now))
	assert.Equal(t, "@every 5m0s", plain.String())

	immediate := NewImmediateIntervalSchedule(5 * time.Minute)
	assert.Equal(t, now, immediate.Next(now))
	assert.Equal(t, now.Add(5*time.Minute), immediate.Next(now))
}
