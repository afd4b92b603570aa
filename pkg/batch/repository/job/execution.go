package job

import (
	"context"

	core "cronjob/pkg/batch/job/core"
)

// JobExecution は JobExecution の保存と取得に関する操作を定義します。
type JobExecution interface {
	// SaveJobExecution は新しい JobExecution を保存します。
	SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// UpdateJobExecution は既存の JobExecution の状態を更新します。
	UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// FindJobExecutionByID は指定された ID の JobExecution を検索します。
	FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error)

	// FindLatestJobExecution は指定された JobInstance の最新の JobExecution を検索します。
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error)

	// FindLatestJobExecutionByJobName は指定されたジョブ名の最新の JobExecution を検索します。
	// 実行履歴がない場合は nil を返します。
	FindLatestJobExecutionByJobName(ctx context.Context, jobName string) (*core.JobExecution, error)

	// FindJobExecutionsByJobInstance は指定された JobInstance に関連する全ての JobExecution を古い順に返します。
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *core.JobInstance) ([]*core.JobExecution, error)
}
