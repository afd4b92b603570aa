package joblauncher

import (
	"context"
	"fmt"
	"sync"

	core "cronjob/pkg/batch/job/core"
	"cronjob/pkg/batch/repository"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

const module = "job_launcher"

// SimpleJobLauncher は JobLauncher インターフェースのシンプルな実装です。
// 同じジョブ名の起動要求は到着順に一つずつ実行され、同時に二つ以上実行されることはありません。
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository

	mu     sync.Mutex
	queues map[string]*ticketQueue
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher は新しい SimpleJobLauncher のインスタンスを作成します。
func NewSimpleJobLauncher(jobRepository repository.JobRepository) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository: jobRepository,
		queues:        make(map[string]*ticketQueue),
	}
}

func (l *SimpleJobLauncher) queue(jobName string) *ticketQueue {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.queues[jobName]
	if !ok {
		q = &ticketQueue{}
		l.queues[jobName] = q
	}
	return q
}

// Pending は指定されたジョブの起動待ちの数を返します。
func (l *SimpleJobLauncher) Pending(jobName string) int {
	return l.queue(jobName).pending()
}

// Launch は指定された Job を JobParameters とともに起動し、終了するまで待機します。
func (l *SimpleJobLauncher) Launch(ctx context.Context, job core.Job, params core.JobParameters) (*core.JobExecution, error) {
	jobName := job.JobName()

	q := l.queue(jobName)
	if err := q.acquire(ctx); err != nil {
		return nil, exception.NewKindError(exception.ErrLaunchRejected, module, fmt.Sprintf("Job '%s' の起動待ちが中断されました", jobName), err)
	}
	defer q.release()

	params, err := l.nextParameters(ctx, job, params)
	if err != nil {
		return nil, err
	}

	if err := job.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters のバリデーションに失敗しました: %v", jobName, err)
		return nil, withLaunchRejected(err, "JobParameters のバリデーションエラー")
	}

	jobInstance, err := l.jobInstance(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	jobExecution := core.NewJobExecution(jobInstance.ID, jobName, params)
	if err := l.jobRepository.SaveJobExecution(ctx, jobExecution); err != nil {
		return nil, exception.NewBatchError(module, "起動処理エラー: JobExecution の保存に失敗しました", err, false, false)
	}

	logger.Infof("Starting Job: [%s] with parameters: %s", jobName, params)

	runErr := job.Run(ctx, jobExecution, params)
	if !jobExecution.Status.IsFinished() {
		// Run が状態を確定しなかった場合
		if runErr != nil {
			jobExecution.MarkAsFailed(runErr)
		} else {
			jobExecution.MarkAsCompleted()
		}
	}

	if err := l.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の最終状態の更新に失敗しました: %v", jobExecution.ID, err)
	}

	if jobExecution.Status == core.BatchStatusCompleted {
		logger.Infof("Job: [%s] completed with the following parameters: %s and the following status: [%s] in %s",
			jobName, params, jobExecution.Status, jobExecution.Duration())
	} else {
		logger.Errorf("Job: [%s] failed with the following parameters: %s and the following status: [%s]: %v",
			jobName, params, jobExecution.Status, jobExecution.Cause())
	}
	return jobExecution, nil
}

// nextParameters は直近の実行のパラメータにインクリメンタを適用し、その上に params を重ねます。
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, job core.Job, params core.JobParameters) (core.JobParameters, error) {
	incrementer := job.Incrementer()
	if incrementer == nil {
		return params.Copy(), nil
	}

	base := core.NewJobParameters()
	latest, err := l.jobRepository.FindLatestJobExecutionByJobName(ctx, job.JobName())
	if err != nil {
		return base, exception.NewBatchError(module, "起動処理エラー: 直近の JobExecution の検索に失敗しました", err, false, false)
	}
	if latest != nil {
		base = latest.Parameters
	}

	next := incrementer.GetNext(base)
	for k, v := range params.Params {
		next.Put(k, v)
	}
	logger.Debugf("JobParametersIncrementer を使用して新しい JobParameters を生成しました: %s", next)
	return next, nil
}

// jobInstance は params に対応する JobInstance を返します。
// 完了済み、または実行中の JobInstance に対する起動は拒否します。
func (l *SimpleJobLauncher) jobInstance(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if err != nil {
		return nil, exception.NewBatchError(module, "起動処理エラー: JobInstance の検索に失敗しました", err, false, false)
	}

	if jobInstance != nil {
		latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
		if err == nil && latest != nil {
			switch latest.Status {
			case core.BatchStatusCompleted:
				return nil, exception.NewKindError(exception.ErrLaunchRejected, module,
					fmt.Sprintf("Job '%s' はパラメータ %s で既に完了しています", jobName, params), nil)
			case core.BatchStatusStarting, core.BatchStatusStarted:
				return nil, exception.NewKindError(exception.ErrLaunchRejected, module,
					fmt.Sprintf("Job '%s' はパラメータ %s で実行中です", jobName, params), nil)
			}
		}
		logger.Infof("既存の JobInstance (ID: %s, JobName: %s) を再実行します。", jobInstance.ID, jobName)
		return jobInstance, nil
	}

	jobInstance = core.NewJobInstance(jobName, params)
	if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
		return nil, exception.NewBatchError(module, "起動処理エラー: 新しい JobInstance の保存に失敗しました", err, false, false)
	}
	logger.Debugf("新しい JobInstance (ID: %s, JobName: %s) を作成しました。", jobInstance.ID, jobName)
	return jobInstance, nil
}

func withLaunchRejected(err error, message string) error {
	if exception.KindOf(err) != nil {
		return err
	}
	return exception.NewKindError(exception.ErrLaunchRejected, module, message, err)
}
