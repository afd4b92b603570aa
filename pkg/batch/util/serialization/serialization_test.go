package serialization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "cronjob/pkg/batch/job/core"
)

type mail struct {
	Email string `json:"email"`
}

func TestMarshalItem(t *testing.T) {
	data, err := MarshalItem(mail{Email: "a@example.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@example.com"}`, string(data))

	_, err = MarshalItem(make(chan int))
	assert.Error(t, err)
}

func TestMarshalExecutionContext(t *testing.T) {
	data, err := MarshalExecutionContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	ec := core.NewExecutionContext()
	ec.Put("reader.count", 3)
	data, err = MarshalExecutionContext(ec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reader.count":3}`, string(data))
}

func TestMarshalJobParameters(t *testing.T) {
	data, err := MarshalJobParameters(core.JobParameters{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	p := core.NewJobParameters()
	p.Put("run.id", int64(2))
	data, err = MarshalJobParameters(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"run.id":2}`, string(data))
}

func TestMarshalFailures(t *testing.T) {
	data, err := MarshalFailures(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = MarshalFailures([]error{errors.New("boom")})
	require.NoError(t, err)
	assert.Equal(t, `["boom"]`, string(data))
}
