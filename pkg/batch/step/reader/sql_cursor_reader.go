package reader

import (
	"context"
	"io"

	"github.com/jmoiron/sqlx"

	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// ReadCountKey は読み込み件数を ExecutionContext に記録するキーです。
const ReadCountKey = "reader.read.count"

// SQLCursorReader はクエリ結果を一行ずつ T にマッピングして返す ItemReader です。
// T は sqlx の db タグでカラムと対応付けられます。
type SQLCursorReader[T any] struct {
	db    sqlx.QueryerContext
	query string
	args  []interface{}

	rows  *sqlx.Rows
	ec    core.ExecutionContext
	count int
}

// NewSQLCursorReader は新しい SQLCursorReader を作成します。
func NewSQLCursorReader[T any](db sqlx.QueryerContext, query string, args ...interface{}) *SQLCursorReader[T] {
	return &SQLCursorReader[T]{db: db, query: query, args: args}
}

// Open はクエリを実行してカーソルを開きます。ステップ実行ごとに新しいカーソルになります。
func (r *SQLCursorReader[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	if r.rows != nil {
		r.rows.Close()
		r.rows = nil
	}
	logger.Debugf("SQLCursorReader: クエリを実行します: %s", r.query)
	rows, err := r.db.QueryxContext(ctx, r.query, r.args...)
	if err != nil {
		return exception.NewKindError(exception.ErrStoreUnavailable, "reader", "クエリの実行に失敗しました", err)
	}
	r.rows = rows
	r.ec = ec
	r.count = 0
	return nil
}

// Read は次の行を返します。行がなくなった場合は io.EOF を返します。
func (r *SQLCursorReader[T]) Read(ctx context.Context) (T, error) {
	var item T
	if r.rows == nil {
		return item, exception.NewKindError(exception.ErrRead, "reader", "カーソルが開かれていません", nil)
	}
	if err := ctx.Err(); err != nil {
		return item, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return item, exception.NewKindError(exception.ErrRead, "reader", "次の行の取得に失敗しました", err)
		}
		return item, io.EOF
	}
	if err := r.rows.StructScan(&item); err != nil {
		return item, exception.NewKindError(exception.ErrRead, "reader", "行のマッピングに失敗しました", err)
	}
	r.count++
	if r.ec != nil {
		r.ec.Put(ReadCountKey, r.count)
	}
	return item, nil
}

// Close はカーソルを閉じます。
func (r *SQLCursorReader[T]) Close(ctx context.Context) error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	if err != nil {
		return exception.NewBatchError("reader", "カーソルのクローズに失敗しました", err, false, false)
	}
	return nil
}

var _ core.ItemReader[struct{}] = (*SQLCursorReader[struct{}])(nil)
