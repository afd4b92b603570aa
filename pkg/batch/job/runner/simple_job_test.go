package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	core "cronjob/pkg/batch/job/core"
	"cronjob/pkg/batch/repository"
	exception "cronjob/pkg/batch/util/exception"
)

type mockStep struct {
	mock.Mock
	name string
}

func (m *mockStep) StepName() string { return m.name }

func (m *mockStep) Execute(ctx context.Context, je *core.JobExecution, se *core.StepExecution) error {
	err := m.Called(se.StepName).Error(0)
	se.MarkAsStarted()
	if err != nil {
		se.MarkAsFailed(err)
	} else {
		se.MarkAsCompleted()
	}
	return err
}

type recordingListener struct {
	before, after []core.JobStatus
}

func (l *recordingListener) BeforeJob(ctx context.Context, je *core.JobExecution) {
	l.before = append(l.before, je.Status)
}

func (l *recordingListener) AfterJob(ctx context.Context, je *core.JobExecution) {
	l.after = append(l.after, je.Status)
}

func params() core.JobParameters {
	p := core.NewJobParameters()
	p.Put("time", int64(1))
	return p
}

func newExecution(t *testing.T, repo *repository.InMemoryJobRepository) *core.JobExecution {
	t.Helper()
	je := core.NewJobExecution("instance", "mailerJob", params())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	return je
}

func TestSimpleJobRunsStepsInOrder(t *testing.T) {
	repo := repository.NewInMemoryJobRepository(0)
	s1 := &mockStep{name: "step1"}
	s1.On("Execute", "step1").Return(nil).Once()
	s2 := &mockStep{name: "step2"}
	s2.On("Execute", "step2").Return(nil).Once()
	l := &recordingListener{}

	j := NewSimpleJob("mailerJob", repo, s1, s2)
	j.RegisterListener(l)
	je := newExecution(t, repo)

	require.NoError(t, j.Run(context.Background(), je, je.Parameters))

	s1.AssertExpectations(t)
	s2.AssertExpectations(t)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	require.Len(t, je.StepExecutions, 2)
	assert.Equal(t, "step1", je.StepExecutions[0].StepName)
	assert.Equal(t, []core.JobStatus{core.BatchStatusStarting}, l.before)
	assert.Equal(t, []core.JobStatus{core.BatchStatusCompleted}, l.after)

	saved, err := repo.FindStepExecutionsByJobExecutionID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestSimpleJobStopsAtFirstFailedStep(t *testing.T) {
	repo := repository.NewInMemoryJobRepository(0)
	cause := exception.NewKindError(exception.ErrWrite, "writer", "smtp down", nil)
	s1 := &mockStep{name: "step1"}
	s1.On("Execute", "step1").Return(cause).Once()
	s2 := &mockStep{name: "step2"}

	j := NewSimpleJob("mailerJob", repo, s1, s2)
	je := newExecution(t, repo)

	err := j.Run(context.Background(), je, je.Parameters)

	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, core.ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, cause, je.Cause())
	s2.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestSimpleJobWithoutSteps(t *testing.T) {
	j := NewSimpleJob("mailerJob", nil)
	je := core.NewJobExecution("instance", "mailerJob", params())

	assert.Error(t, j.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestSimpleJobCancelledBeforeStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s1 := &mockStep{name: "step1"}
	j := NewSimpleJob("mailerJob", nil, s1)
	je := core.NewJobExecution("instance", "mailerJob", params())

	err := j.Run(ctx, je, je.Parameters)

	assert.ErrorIs(t, err, context.Canceled)
	s1.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestSimpleJobValidateParameters(t *testing.T) {
	j := NewSimpleJob("mailerJob", nil)
	j.RequireParameters("time")

	assert.ErrorIs(t, j.ValidateParameters(core.NewJobParameters()), exception.ErrLaunchRejected)

	other := core.NewJobParameters()
	other.Put("run.id", 1)
	err := j.ValidateParameters(other)
	assert.ErrorIs(t, err, exception.ErrLaunchRejected)
	assert.Contains(t, err.Error(), "time")

	assert.NoError(t, j.ValidateParameters(params()))
	assert.False(t, errors.Is(j.ValidateParameters(params()), exception.ErrLaunchRejected))
}
