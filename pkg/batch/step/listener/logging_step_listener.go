package listener

import (
	"context"

	core "cronjob/pkg/batch/job/core"
	logger "cronjob/pkg/batch/util/logger"
	serialization "cronjob/pkg/batch/util/serialization"
)

// LoggingStepExecutionListener はステップの開始と終了をログに出力する StepExecutionListener の実装です。
type LoggingStepExecutionListener struct{}

// NewLoggingStepExecutionListener は新しい LoggingStepExecutionListener のインスタンスを作成します。
func NewLoggingStepExecutionListener() *LoggingStepExecutionListener {
	return &LoggingStepExecutionListener{}
}

// BeforeStep はステップ実行前に呼び出されます。
func (l *LoggingStepExecutionListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("Executing step [%s]", stepExecution.StepName)
}

// AfterStep はステップ実行後に呼び出されます。
func (l *LoggingStepExecutionListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("Step: [%s] executed with status [%s] in %s (read=%d, write=%d, commit=%d)",
		stepExecution.StepName, stepExecution.Status, stepExecution.EndTime.Sub(stepExecution.StartTime),
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.CommitCount)

	if logger.Level() <= logger.LevelDebug {
		data, err := serialization.MarshalExecutionContext(stepExecution.ExecutionContext)
		if err != nil {
			logger.Warnf("ステップ '%s' の ExecutionContext を出力できませんでした: %v", stepExecution.StepName, err)
			return
		}
		logger.Debugf("ステップ '%s' の ExecutionContext: %s", stepExecution.StepName, data)
	}
}

var _ core.StepExecutionListener = (*LoggingStepExecutionListener)(nil)
