package reader

import (
	"context"
	"io"

	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// ListSource は Open のたびに読み込み対象のアイテムを返す関数です。
type ListSource[T any] func(ctx context.Context) ([]T, error)

// ListReader はメモリ上のアイテム列を先頭から順に返す ItemReader です。
type ListReader[T any] struct {
	source ListSource[T]
	items  []T
	index  int
	opened bool
}

// NewListReader は固定のアイテム列を返す ListReader を作成します。
func NewListReader[T any](items ...T) *ListReader[T] {
	return NewListReaderFunc(func(context.Context) ([]T, error) {
		return items, nil
	})
}

// NewListReaderFunc は Open のたびに source からアイテムを取得する ListReader を作成します。
func NewListReaderFunc[T any](source ListSource[T]) *ListReader[T] {
	return &ListReader[T]{source: source}
}

// Open はアイテム列を取得し、読み込み位置を先頭に戻します。
func (r *ListReader[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	items, err := r.source(ctx)
	if err != nil {
		return exception.NewKindError(exception.ErrStoreUnavailable, "reader", "アイテムの取得に失敗しました", err)
	}
	r.items = items
	r.index = 0
	r.opened = true
	logger.Debugf("ListReader: %d 件のアイテムを読み込み対象にしました。", len(items))
	return nil
}

// Read は次のアイテムを返します。全て読み終えた場合は io.EOF を返します。
func (r *ListReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if !r.opened {
		return zero, exception.NewKindError(exception.ErrRead, "reader", "ListReader が Open されていません", nil)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.index >= len(r.items) {
		return zero, io.EOF
	}
	item := r.items[r.index]
	r.index++
	return item, nil
}

// Close は読み込み状態を破棄します。
func (r *ListReader[T]) Close(ctx context.Context) error {
	r.items = nil
	r.index = 0
	r.opened = false
	return nil
}

var _ core.ItemReader[string] = (*ListReader[string])(nil)
