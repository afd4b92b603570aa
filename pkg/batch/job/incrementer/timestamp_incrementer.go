package incrementer

import (
	"fmt"
	"sync"
	"time"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// TimestampIncrementer はジョブパラメータに起動時刻の Unix ミリ秒を設定する JobParametersIncrementer の実装です。
// 同じミリ秒内に複数回呼ばれた場合も、返す値は呼び出しごとに厳密に増加します。
type TimestampIncrementer struct {
	name string
	now  func() time.Time

	mu   sync.Mutex
	last int64
}

// NewTimestampIncrementer は新しい TimestampIncrementer のインスタンスを作成します。
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	return NewTimestampIncrementerWithClock(name, time.Now)
}

// NewTimestampIncrementerWithClock は時刻取得関数を指定して TimestampIncrementer を作成します。
func NewTimestampIncrementerWithClock(name string, now func() time.Time) *TimestampIncrementer {
	if name == "" {
		name = "time"
	}
	return &TimestampIncrementer{name: name, now: now}
}

// Next は次のタイムスタンプ値を返します。
func (i *TimestampIncrementer) Next() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	ts := i.now().UnixMilli()
	if ts <= i.last {
		ts = i.last + 1
	}
	i.last = ts
	return ts
}

// GetNext は与えられた JobParameters のコピーにタイムスタンプを設定して返します。
func (i *TimestampIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	nextParams := params.Copy()
	ts := i.Next()
	nextParams.Put(i.name, ts)
	logger.Debugf("JobParametersIncrementer '%s': '%s' を %d に設定しました。", i, i.name, ts)
	return nextParams
}

// String は TimestampIncrementer の文字列表現を返します。
func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*TimestampIncrementer)(nil)
