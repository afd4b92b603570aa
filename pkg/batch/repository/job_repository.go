package repository

import (
	job "cronjob/pkg/batch/repository/job"
)

// JobRepository はバッチ実行に関するメタデータを管理するためのインターフェースです。
// 複数のより小さなリポジトリインターフェースを埋め込むことで、責務を分割します。
type JobRepository interface {
	job.JobInstance
	job.JobExecution
	job.StepExecution

	// Close はリポジトリが使用するリソースを解放します。
	Close() error
}
