package processor

import (
	"context"

	core "cronjob/pkg/batch/job/core"
)

// PassThroughProcessor は受け取ったアイテムをそのまま返す ItemProcessor です。
type PassThroughProcessor[T any] struct{}

// NewPassThroughProcessor は新しい PassThroughProcessor を作成します。
func NewPassThroughProcessor[T any]() *PassThroughProcessor[T] {
	return &PassThroughProcessor[T]{}
}

func (p *PassThroughProcessor[T]) Process(ctx context.Context, item T) (T, error) {
	return item, nil
}

// FuncProcessor は関数を ItemProcessor として扱うためのアダプタです。
type FuncProcessor[I, O any] func(ctx context.Context, item I) (O, error)

func (f FuncProcessor[I, O]) Process(ctx context.Context, item I) (O, error) {
	return f(ctx, item)
}

var (
	_ core.ItemProcessor[string, string] = (*PassThroughProcessor[string])(nil)
	_ core.ItemProcessor[string, int]    = FuncProcessor[string, int](nil)
)
