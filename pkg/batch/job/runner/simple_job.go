package runner

import (
	"context"
	"errors"
	"fmt"

	core "cronjob/pkg/batch/job/core"
	job "cronjob/pkg/batch/repository/job"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// SimpleJob は登録されたステップを順番に実行する core.Job の実装です。
// 最初に失敗したステップでジョブを終了し、その原因をジョブの失敗原因とします。
type SimpleJob struct {
	name          string
	steps         []core.Step
	jobRepository job.StepExecution
	jobListeners  []core.JobExecutionListener
	incrementer   core.JobParametersIncrementer
	required      []string
}

var _ core.Job = (*SimpleJob)(nil)

// NewSimpleJob は新しい SimpleJob のインスタンスを作成します。jobRepository が nil の場合、StepExecution は保存されません。
func NewSimpleJob(name string, jobRepository job.StepExecution, steps ...core.Step) *SimpleJob {
	return &SimpleJob{
		name:          name,
		steps:         steps,
		jobRepository: jobRepository,
	}
}

// JobName はジョブ名を返します。
func (j *SimpleJob) JobName() string {
	return j.name
}

// Steps は実行順のステップを返します。
func (j *SimpleJob) Steps() []core.Step {
	return j.steps
}

// RegisterListener は JobExecutionListener を登録します。
func (j *SimpleJob) RegisterListener(l core.JobExecutionListener) {
	j.jobListeners = append(j.jobListeners, l)
}

// SetIncrementer は起動ごとにパラメータを更新する JobParametersIncrementer を設定します。
func (j *SimpleJob) SetIncrementer(incrementer core.JobParametersIncrementer) {
	j.incrementer = incrementer
}

// Incrementer は設定された JobParametersIncrementer を返します。
func (j *SimpleJob) Incrementer() core.JobParametersIncrementer {
	return j.incrementer
}

// RequireParameters は起動時に必須とするパラメータのキーを設定します。
func (j *SimpleJob) RequireParameters(keys ...string) {
	j.required = append(j.required, keys...)
}

// ValidateParameters はジョブパラメータのバリデーションを行います。
// パラメータが空の場合と、必須パラメータが欠けている場合は起動を拒否します。
func (j *SimpleJob) ValidateParameters(params core.JobParameters) error {
	if params.Len() == 0 {
		return exception.NewKindError(exception.ErrLaunchRejected, j.name, "JobParameters が空です", nil)
	}
	for _, key := range j.required {
		if _, ok := params.Get(key); !ok {
			return exception.NewKindError(exception.ErrLaunchRejected, j.name, fmt.Sprintf("必須パラメータ '%s' が見つかりません", key), nil)
		}
	}
	return nil
}

// Run はステップを順番に実行し、結果を jobExecution に記録します。
func (j *SimpleJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) error {
	logger.Debugf("ジョブ '%s' (Execution ID: %s) を開始します。", j.name, jobExecution.ID)

	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
	if jobExecution.Status == core.BatchStatusStarting {
		jobExecution.MarkAsStarted()
	}

	err := j.runSteps(ctx, jobExecution)
	if err != nil {
		jobExecution.MarkAsFailed(err)
	} else {
		jobExecution.MarkAsCompleted()
	}

	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
	logger.Debugf("ジョブ '%s' (Execution ID: %s) が終了しました。最終ステータス: %s, 終了ステータス: %s",
		j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	return err
}

func (j *SimpleJob) runSteps(ctx context.Context, jobExecution *core.JobExecution) error {
	if len(j.steps) == 0 {
		return exception.NewBatchErrorf(j.name, "ジョブ '%s' にステップが登録されていません", j.name)
	}
	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context がキャンセルされたため、ジョブ '%s' の実行を中断します: %v", j.name, err)
			return err
		}

		stepExecution := core.NewStepExecution(step.StepName(), jobExecution)
		if j.jobRepository != nil {
			if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
				return exception.NewBatchError(j.name, fmt.Sprintf("StepExecution '%s' の保存に失敗しました", step.StepName()), err, false, false)
			}
		}

		stepErr := step.Execute(ctx, jobExecution, stepExecution)

		if j.jobRepository != nil {
			if err := j.jobRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
				logger.Errorf("ジョブ '%s': StepExecution (ID: %s) の更新に失敗しました: %v", j.name, stepExecution.ID, err)
			}
		}
		if stepErr != nil {
			if !errors.Is(stepErr, context.Canceled) {
				logger.Errorf("ジョブ '%s': ステップ '%s' の実行中にエラーが発生しました: %v", j.name, step.StepName(), stepErr)
			}
			return stepErr
		}
	}
	return nil
}
