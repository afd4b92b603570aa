package job

import (
	"context"

	core "cronjob/pkg/batch/job/core"
)

// StepExecution は StepExecution の保存と取得に関する操作を定義します。
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error)
}
