package core

import (
	"context"
)

// Job は実行可能なバッチジョブのインターフェースです。
type Job interface {
	// Run はジョブを実行し、結果を jobExecution に記録します。
	// 返されるエラーは jobExecution の失敗原因と同じものです。
	Run(ctx context.Context, jobExecution *JobExecution, jobParameters JobParameters) error
	JobName() string
	ValidateParameters(params JobParameters) error
	// Incrementer は起動時にパラメータを更新する JobParametersIncrementer を返します。nil でも構いません。
	Incrementer() JobParametersIncrementer
}

// Step はジョブ内で実行される単一のステップのインターフェースです。
type Step interface {
	Execute(ctx context.Context, jobExecution *JobExecution, stepExecution *StepExecution) error
	StepName() string
}

// ItemReader はアイテムを一件ずつ読み込むインターフェースです。
// データの終端に達した場合は io.EOF を返します。
type ItemReader[O any] interface {
	// Open はリソースを開きます。ステップ実行ごとに呼ばれ、読み込み位置は先頭に戻ります。
	Open(ctx context.Context, ec ExecutionContext) error
	Read(ctx context.Context) (O, error)
	Close(ctx context.Context) error
}

// ItemProcessor はアイテムを変換するインターフェースです。
type ItemProcessor[I, O any] interface {
	Process(ctx context.Context, item I) (O, error)
}

// ItemWriter はチャンク単位でアイテムを書き込むインターフェースです。
// 空のチャンクで呼ばれることはありません。
type ItemWriter[I any] interface {
	Open(ctx context.Context, ec ExecutionContext) error
	Write(ctx context.Context, items []I) error
	Close(ctx context.Context) error
}

// JobExecutionListener はジョブ実行イベントを処理するためのインターフェースです。
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *JobExecution)
	AfterJob(ctx context.Context, jobExecution *JobExecution)
}

// StepExecutionListener はステップ実行イベントを処理するためのインターフェースです。
type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *StepExecution)
	AfterStep(ctx context.Context, stepExecution *StepExecution)
}

// ChunkListener はチャンク処理イベントを処理するためのインターフェースです。
type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *StepExecution)
	AfterChunk(ctx context.Context, stepExecution *StepExecution, size int)
	OnChunkError(ctx context.Context, stepExecution *StepExecution, err error)
}

// JobParametersIncrementer は JobParameters を起動ごとに更新するためのインターフェースです。
type JobParametersIncrementer interface {
	GetNext(params JobParameters) JobParameters
}

// ItemReadListener はアイテム読み込みエラーを通知するためのインターフェースです。
type ItemReadListener interface {
	OnReadError(ctx context.Context, err error)
}

// ItemProcessListener はアイテム処理エラーを通知するためのインターフェースです。
type ItemProcessListener interface {
	OnProcessError(ctx context.Context, item interface{}, err error)
}

// ItemWriteListener はチャンク書き込みエラーを通知するためのインターフェースです。
type ItemWriteListener interface {
	OnWriteError(ctx context.Context, items []interface{}, err error)
}
