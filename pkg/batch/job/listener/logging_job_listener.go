package listener

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
	serialization "cronjob/pkg/batch/util/serialization"
)

// LoggingJobListener はジョブの開始と終了をログに出力する JobExecutionListener の実装です。
type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

// BeforeJob はジョブ実行前に呼び出されます。
func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	if logger.Level() > logger.LevelDebug {
		return
	}
	params, err := serialization.MarshalJobParameters(jobExecution.Parameters)
	if err != nil {
		logger.Warnf("ジョブ '%s' のパラメータを出力できませんでした: %v", jobExecution.JobName, err)
		return
	}
	logger.Debugf("ジョブ '%s' (Execution ID: %s) のパラメータ: %s", jobExecution.JobName, jobExecution.ID, params)
}

// AfterJob はジョブ実行後に呼び出されます。失敗した場合は原因を出力します。
func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	if jobExecution.Status != core.BatchStatusFailed {
		return
	}
	failures, err := serialization.MarshalFailures(jobExecution.Failures)
	if err != nil {
		logger.Warnf("ジョブ '%s' の失敗原因を出力できませんでした: %v", jobExecution.JobName, err)
		return
	}
	logger.Errorf("ジョブ '%s' (Execution ID: %s) が失敗しました。原因: %s", jobExecution.JobName, jobExecution.ID, failures)
}

var _ core.JobExecutionListener = (*LoggingJobListener)(nil)
