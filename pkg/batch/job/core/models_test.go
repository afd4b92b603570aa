package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobParametersHash(t *testing.T) {
	a := NewJobParameters()
	a.Put("time", int64(1700000000000))
	a.Put("run.id", 1)

	b := NewJobParameters()
	b.Put("run.id", 1)
	b.Put("time", int64(1700000000000))

	assert.Equal(t, a.Hash(), b.Hash(), "キーの挿入順に依存しない")

	b.Put("time", int64(1700000000001))
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, "{run.id=1, time=1700000000000}", a.String())
}

func TestJobParametersHashDistinguishesTypeAndSeparators(t *testing.T) {
	num := NewJobParameters()
	num.Put("run.id", int64(1))
	str := NewJobParameters()
	str.Put("run.id", "1")
	assert.NotEqual(t, num.Hash(), str.Hash(), "値の型が異なれば別のパラメータ")

	joined := NewJobParameters()
	joined.Put("a", "1;b=2")
	split := NewJobParameters()
	split.Put("a", "1")
	split.Put("b", "2")
	assert.NotEqual(t, joined.Hash(), split.Hash())

	key := NewJobParameters()
	key.Put("a=1;b", "2")
	assert.NotEqual(t, key.Hash(), split.Hash())
}

func TestJobParametersGetters(t *testing.T) {
	p := NewJobParameters()
	p.Put("time", "1700000000000")
	p.Put("run.id", 3)

	ts, ok := p.GetInt64("time")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts)

	id, ok := p.GetInt("run.id")
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	_, ok = p.GetInt("missing")
	assert.False(t, ok)

	c := p.Copy()
	c.Put("run.id", 4)
	id, _ = p.GetInt("run.id")
	assert.Equal(t, 3, id, "Copy は元のパラメータを変更しない")
}

func TestJobExecutionLifecycle(t *testing.T) {
	je := NewJobExecution("instance-1", "mailerJob", NewJobParameters())
	assert.Equal(t, BatchStatusStarting, je.Status)
	assert.NotEmpty(t, je.ID)

	je.MarkAsStarted()
	assert.Equal(t, BatchStatusStarted, je.Status)
	assert.False(t, je.Status.IsFinished())

	cause := errors.New("writer failed")
	je.MarkAsFailed(cause)
	assert.Equal(t, BatchStatusFailed, je.Status)
	assert.Equal(t, ExitStatusFailed, je.Status.ToExitStatus())
	assert.True(t, je.Status.IsFinished())
	assert.Equal(t, cause, je.Cause())
	assert.GreaterOrEqual(t, je.Duration().Nanoseconds(), int64(0))
}

func TestNewStepExecutionAttachesToJob(t *testing.T) {
	je := NewJobExecution("instance-1", "mailerJob", NewJobParameters())
	se := NewStepExecution("step1", je)

	assert.Len(t, je.StepExecutions, 1)
	assert.Same(t, se, je.StepExecutions[0])
	assert.Equal(t, BatchStatusStarting, se.Status)
	assert.Nil(t, se.Cause())

	se.MarkAsStarted()
	se.MarkAsCompleted()
	assert.Equal(t, BatchStatusCompleted, se.Status)
	assert.Equal(t, ExitStatusCompleted, se.ExitStatus)
}
