package writer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, string(msg.Body))
	return args.Error(0)
}

func (m *mockPublisher) TxCommit() error {
	return m.Called().Error(0)
}

func (m *mockPublisher) TxRollback() error {
	return m.Called().Error(0)
}

type mail struct {
	Email string `json:"email"`
}

func TestLoggingItemWriterWritesEachItemInOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	defer logger.SetOutput(os.Stderr)

	w := NewLoggingItemWriter[string]()
	require.NoError(t, w.Write(context.Background(), []string{"A", "B"}))

	out := buf.String()
	assert.Contains(t, out, "Writing A")
	assert.Contains(t, out, "Writing B")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Writing A")), bytes.Index(buf.Bytes(), []byte("Writing B")))
}

func TestAMQPItemWriterPublishesOneMessagePerItem(t *testing.T) {
	p := &mockPublisher{}
	p.On("PublishWithContext", "mail", "person", `{"email":"a@example.com"}`).Return(nil).Once()
	p.On("PublishWithContext", "mail", "person", `{"email":"b@example.com"}`).Return(nil).Once()
	p.On("TxCommit").Return(nil).Once()

	w := NewAMQPItemWriter[mail](p, "mail", "person")
	err := w.Write(context.Background(), []mail{{Email: "a@example.com"}, {Email: "b@example.com"}})

	require.NoError(t, err)
	p.AssertExpectations(t)
	assert.NoError(t, w.Close(context.Background()))
}

func TestAMQPItemWriterFailureIsWriteError(t *testing.T) {
	p := &mockPublisher{}
	p.On("PublishWithContext", "", "q", `{"email":"a@example.com"}`).Return(errors.New("channel closed")).Once()
	p.On("TxRollback").Return(nil).Once()

	w := NewAMQPItemWriter[mail](p, "", "q")
	err := w.Write(context.Background(), []mail{{Email: "a@example.com"}, {Email: "b@example.com"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)
	p.AssertNumberOfCalls(t, "PublishWithContext", 1)
	p.AssertNotCalled(t, "TxCommit")
}

func TestAMQPItemWriterRollsBackPartialChunk(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	defer logger.SetOutput(os.Stderr)

	p := &mockPublisher{}
	p.On("PublishWithContext", "mail", "person", `{"email":"a@example.com"}`).Return(nil).Once()
	p.On("PublishWithContext", "mail", "person", `{"email":"b@example.com"}`).Return(errors.New("connection reset")).Once()
	p.On("TxRollback").Return(nil).Once()

	w := NewAMQPItemWriter[mail](p, "mail", "person")
	err := w.Write(context.Background(), []mail{{Email: "a@example.com"}, {Email: "b@example.com"}, {Email: "c@example.com"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrWrite)
	p.AssertExpectations(t)
	p.AssertNumberOfCalls(t, "PublishWithContext", 2)
	p.AssertNotCalled(t, "TxCommit")
	assert.NotContains(t, buf.String(), "Writing", "コミットされなかったチャンクは出力しない")
}

func TestAMQPItemWriterCommitFailureIsWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	defer logger.SetOutput(os.Stderr)

	p := &mockPublisher{}
	p.On("PublishWithContext", "", "q", `{"email":"a@example.com"}`).Return(nil).Once()
	p.On("TxCommit").Return(errors.New("channel closed")).Once()

	w := NewAMQPItemWriter[mail](p, "", "q")
	err := w.Write(context.Background(), []mail{{Email: "a@example.com"}})

	assert.ErrorIs(t, err, exception.ErrWrite)
	assert.NotContains(t, buf.String(), "Writing")
	p.AssertExpectations(t)
}

func TestAMQPItemWriterLogsAfterCommit(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	defer logger.SetOutput(os.Stderr)

	p := &mockPublisher{}
	p.On("PublishWithContext", "", "q", mock.Anything).Return(nil).Twice()
	p.On("TxCommit").Run(func(mock.Arguments) {
		assert.NotContains(t, buf.String(), "Writing", "コミット前には出力しない")
	}).Return(nil).Once()

	w := NewAMQPItemWriter[mail](p, "", "q")
	require.NoError(t, w.Write(context.Background(), []mail{{Email: "a@example.com"}, {Email: "b@example.com"}}))

	assert.Contains(t, buf.String(), "Writing {a@example.com}")
	assert.Contains(t, buf.String(), "Writing {b@example.com}")
}

func TestAMQPItemWriterKeepsConnectionAcrossSteps(t *testing.T) {
	closed := 0
	w := NewAMQPItemWriter[mail](&mockPublisher{}, "", "q")
	w.closer = func() error {
		closed++
		return nil
	}

	assert.NoError(t, w.Close(context.Background()))
	assert.Equal(t, 0, closed, "ステップの終了では接続を閉じない")

	assert.NoError(t, w.Shutdown())
	assert.NoError(t, w.Shutdown())
	assert.Equal(t, 1, closed)
}
