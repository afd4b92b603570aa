package incrementer

import (
	"fmt"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
)

// RunIDIncrementer はジョブパラメータに "run.id" を追加またはインクリメントする JobParametersIncrementer の実装です。
// "run.id" が存在しない場合は 1 を設定し、存在する場合はその値をインクリメントします。
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer は新しい RunIDIncrementer のインスタンスを作成します。
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = "run.id"
	}
	return &RunIDIncrementer{name: name}
}

// GetNext は与えられた JobParameters に "run.id" を追加またはインクリメントして返します。
func (i *RunIDIncrementer) GetNext(params core.JobParameters) core.JobParameters {
	nextParams := params.Copy()

	currentRunID, ok := params.GetInt64(i.name)
	if !ok {
		nextParams.Put(i.name, int64(1))
		logger.Debugf("JobParametersIncrementer '%s': '%s' が見つからないため、1 を設定しました。", i, i.name)
		return nextParams
	}
	nextParams.Put(i.name, currentRunID+1)
	logger.Debugf("JobParametersIncrementer '%s': '%s' を %d から %d にインクリメントしました。", i, i.name, currentRunID, currentRunID+1)
	return nextParams
}

// String は RunIDIncrementer の文字列表現を返します。
func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ core.JobParametersIncrementer = (*RunIDIncrementer)(nil)
