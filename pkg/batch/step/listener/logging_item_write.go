package listener

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// LoggingItemWriteListener はチャンク書き込みエラーをログ出力する ItemWriteListener の実装です。
type LoggingItemWriteListener struct{}

// NewLoggingItemWriteListener は新しい LoggingItemWriteListener のインスタンスを作成します。
func NewLoggingItemWriteListener() *LoggingItemWriteListener {
	return &LoggingItemWriteListener{}
}

// OnWriteError は書き込みエラー時に呼び出されます。
func (l *LoggingItemWriteListener) OnWriteError(ctx context.Context, items []interface{}, err error) {
	logger.Errorf("アイテムの書き込み中にエラーが発生しました (アイテム数: %d): %v", len(items), err)
}

var _ core.ItemWriteListener = (*LoggingItemWriteListener)(nil)
