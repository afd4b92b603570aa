package serialization

import (
	"encoding/json"
	"fmt"

	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
)

const module = "serialization"

// MarshalItem は書き込み対象のアイテムを JSON バイトスライスにシリアライズします。
func MarshalItem[T any](item T) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("アイテム (%T) のシリアライズに失敗しました", item), err, false, false)
	}
	return data, nil
}

// MarshalExecutionContext は ExecutionContext を JSON バイトスライスにシリアライズします。
func MarshalExecutionContext(ctx core.ExecutionContext) ([]byte, error) {
	if ctx == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// MarshalJobParameters は JobParameters を JSON バイトスライスにシリアライズします。
func MarshalJobParameters(params core.JobParameters) ([]byte, error) {
	if params.Params == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(params.Params)
	if err != nil {
		return nil, exception.NewBatchError(module, "JobParameters のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// MarshalFailures は []error を JSON バイトスライスにシリアライズします。
// error インターフェースは直接JSON化できないため、エラーメッセージの文字列スライスに変換します。
func MarshalFailures(failures []error) ([]byte, error) {
	msgs := make([]string, len(failures))
	for i, err := range failures {
		msgs[i] = err.Error()
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failures のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}
