package listener

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// LoggingChunkListener はチャンク処理の開始と完了をログに出力する ChunkListener の実装です。
type LoggingChunkListener struct{}

// NewLoggingChunkListener は新しい LoggingChunkListener のインスタンスを作成します。
func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

// BeforeChunk はチャンク処理が開始される直前に呼び出されます。
func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("ChunkListener: ステップ '%s' のチャンク処理を開始します。", stepExecution.StepName)
}

// AfterChunk はチャンクの書き込みが完了した後に呼び出されます。
func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *core.StepExecution, size int) {
	logger.Debugf("ChunkListener: ステップ '%s' のチャンク (%d 件) を書き込みました。コミット数: %d",
		stepExecution.StepName, size, stepExecution.CommitCount)
}

// OnChunkError はチャンク処理が失敗したときに呼び出されます。
func (l *LoggingChunkListener) OnChunkError(ctx context.Context, stepExecution *core.StepExecution, err error) {
	logger.Errorf("ChunkListener: ステップ '%s' のチャンク処理が失敗しました: %v", stepExecution.StepName, err)
}

var _ core.ChunkListener = (*LoggingChunkListener)(nil)
