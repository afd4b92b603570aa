package joblauncher

import (
	"context"

	core "cronjob/pkg/batch/job/core"
)

// JobLauncher は Job を JobParameters とともに起動するためのインターフェースです。
type JobLauncher interface {
	// Launch は指定された Job を JobParameters とともに同期的に実行し、JobExecution を返します。
	// 返されるエラーは起動処理自体のエラーで、ジョブの失敗は JobExecution の状態で表されます。
	Launch(ctx context.Context, job core.Job, params core.JobParameters) (*core.JobExecution, error)
}
