package job

import (
	entity "cronjob/example/mailer/domain/entity"
	config "cronjob/pkg/batch/config"
	core "cronjob/pkg/batch/job/core"
	incrementer "cronjob/pkg/batch/job/incrementer"
	joblistener "cronjob/pkg/batch/job/listener"
	runner "cronjob/pkg/batch/job/runner"
	job "cronjob/pkg/batch/repository/job"
	step "cronjob/pkg/batch/step"
	steplistener "cronjob/pkg/batch/step/listener"
	processor "cronjob/pkg/batch/step/processor"
)

const (
	// StepName はジョブ唯一のステップ名です。
	StepName = "step1"
	// TimeParameter はトリガーごとに設定される起動時刻パラメータのキーです。
	TimeParameter = "time"
	// RunIDParameter は起動ごとにインクリメントされるパラメータのキーです。
	RunIDParameter = "run.id"
)

// NewMailerJob は Person を読み込み、チャンク単位で writer に渡す一ステップのジョブを作成します。
func NewMailerJob(
	cfg *config.Config,
	jobRepository job.StepExecution,
	r core.ItemReader[entity.Person],
	w core.ItemWriter[entity.Person],
) (*runner.SimpleJob, error) {
	step1, err := step.NewChunkStep[entity.Person, entity.Person](
		StepName, r, processor.NewPassThroughProcessor[entity.Person](), w, cfg.Batch.ChunkSize,
	)
	if err != nil {
		return nil, err
	}
	step1.RegisterStepListener(steplistener.NewLoggingStepExecutionListener())
	step1.RegisterChunkListener(steplistener.NewLoggingChunkListener())
	step1.RegisterItemReadListener(steplistener.NewLoggingItemReadListener())
	step1.RegisterItemProcessListener(steplistener.NewLoggingItemProcessListener())
	step1.RegisterItemWriteListener(steplistener.NewLoggingItemWriteListener())

	mailerJob := runner.NewSimpleJob(cfg.Batch.JobName, jobRepository, step1)
	mailerJob.SetIncrementer(incrementer.NewRunIDIncrementer(RunIDParameter))
	mailerJob.RequireParameters(TimeParameter)
	mailerJob.RegisterListener(joblistener.NewLoggingJobListener())
	return mailerJob, nil
}
