package listener

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// LoggingItemProcessListener はアイテム処理エラーをログ出力する ItemProcessListener の実装です。
type LoggingItemProcessListener struct{}

// NewLoggingItemProcessListener は新しい LoggingItemProcessListener のインスタンスを作成します。
func NewLoggingItemProcessListener() *LoggingItemProcessListener {
	return &LoggingItemProcessListener{}
}

// OnProcessError は処理エラー時に呼び出されます。
func (l *LoggingItemProcessListener) OnProcessError(ctx context.Context, item interface{}, err error) {
	logger.Errorf("アイテムの処理中にエラーが発生しました (アイテム: %+v): %v", item, err)
}

var _ core.ItemProcessListener = (*LoggingItemProcessListener)(nil)
