package writer

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// LoggingItemWriter はチャンク内のアイテムを一件ずつ "Writing {item}" としてログ出力する ItemWriter です。
type LoggingItemWriter[T any] struct{}

// NewLoggingItemWriter は新しい LoggingItemWriter を作成します。
func NewLoggingItemWriter[T any]() *LoggingItemWriter[T] {
	return &LoggingItemWriter[T]{}
}

func (w *LoggingItemWriter[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	return nil
}

// Write はアイテムをチャンク内の順序どおりに出力します。
func (w *LoggingItemWriter[T]) Write(ctx context.Context, items []T) error {
	for _, item := range items {
		logger.Infof("Writing %v", item)
	}
	return nil
}

func (w *LoggingItemWriter[T]) Close(ctx context.Context) error {
	return nil
}

var _ core.ItemWriter[string] = (*LoggingItemWriter[string])(nil)
