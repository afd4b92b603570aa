package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブ/ステップ実行の状態を表します。
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING" // 起動前 (PENDING)
	BatchStatusStarted   JobStatus = "STARTED"  // 実行中 (RUNNING)
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// IsFinished は JobStatus が終了状態かどうかを判定します。
func (s JobStatus) IsFinished() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// ToExitStatus は JobStatus を対応する ExitStatus に変換します。
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus はジョブ/ステップの終了時の詳細なステータスを表します。
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
)

// ExecutionContext はジョブやステップの状態を共有するためのキー-値ストアです。
type ExecutionContext map[string]interface{}

// NewExecutionContext は新しい空の ExecutionContext を作成します。
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put は指定されたキーと値で ExecutionContext に値を設定します。
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get は指定されたキーの値を取得します。
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// GetInt は指定されたキーの値を int として取得します。
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key].(int)
	return v, ok
}

// JobParameters はジョブ実行時のパラメータを保持する構造体です。
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters は新しい JobParameters のインスタンスを作成します。
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put はパラメータを設定します。
func (p *JobParameters) Put(key string, value interface{}) {
	if p.Params == nil {
		p.Params = make(map[string]interface{})
	}
	p.Params[key] = value
}

// Get はパラメータを取得します。
func (p JobParameters) Get(key string) (interface{}, bool) {
	v, ok := p.Params[key]
	return v, ok
}

// GetString はパラメータを文字列として取得します。
func (p JobParameters) GetString(key string) (string, bool) {
	v, ok := p.Params[key].(string)
	return v, ok
}

// GetInt はパラメータを int として取得します。
func (p JobParameters) GetInt(key string) (int, bool) {
	switch v := p.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetInt64 はパラメータを int64 として取得します。数字の文字列も受け付けます。
func (p JobParameters) GetInt64(key string) (int64, bool) {
	switch v := p.Params[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Copy はパラメータの浅いコピーを返します。
func (p JobParameters) Copy() JobParameters {
	c := NewJobParameters()
	for k, v := range p.Params {
		c.Params[k] = v
	}
	return c
}

// Len はパラメータ数を返します。
func (p JobParameters) Len() int {
	return len(p.Params)
}

// Hash はキー順にソートしたパラメータから JobInstance 識別用のハッシュを計算します。
func (p JobParameters) Hash() string {
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		v := p.Params[k]
		vs := fmt.Sprint(v)
		// キーと値は長さを前置し、値の型も含める
		fmt.Fprintf(h, "%d:%s|%T|%d:%s;", len(k), k, v, len(vs), vs)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String はログ用の表現を返します。
func (p JobParameters) String() string {
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, p.Params[k])
	}
	return s + "}"
}

// JobInstance はジョブ名とパラメータで識別されるジョブの論理的な実行単位です。
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
}

// NewJobInstance は新しい JobInstance を作成します。
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	return &JobInstance{
		ID:             uuid.New().String(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: params.Hash(),
		CreateTime:     time.Now(),
	}
}

// JobExecution はジョブの単一の実行を表す構造体です。
// 実行が終了した後は変更されません。
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
}

// NewJobExecution は新しい JobExecution のインスタンスを作成します。
func NewJobExecution(jobInstanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.New().String(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
	}
}

// MarkAsStarted は JobExecution の状態を実行中に更新します。
func (je *JobExecution) MarkAsStarted() {
	je.Status = BatchStatusStarted
	je.StartTime = time.Now()
	je.LastUpdated = je.StartTime
}

// MarkAsCompleted は JobExecution の状態を完了に更新します。
func (je *JobExecution) MarkAsCompleted() {
	je.Status = BatchStatusCompleted
	je.ExitStatus = ExitStatusCompleted
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
}

// MarkAsFailed は JobExecution の状態を失敗に更新し、エラー情報を追加します。
func (je *JobExecution) MarkAsFailed(err error) {
	je.Status = BatchStatusFailed
	je.ExitStatus = ExitStatusFailed
	je.EndTime = time.Now()
	je.LastUpdated = je.EndTime
	je.AddFailureException(err)
}

// AddFailureException は JobExecution にエラー情報を追加します。
func (je *JobExecution) AddFailureException(err error) {
	if err != nil {
		je.Failures = append(je.Failures, err)
		je.LastUpdated = time.Now()
	}
}

// Cause は最初に記録された失敗原因を返します。
func (je *JobExecution) Cause() error {
	if len(je.Failures) == 0 {
		return nil
	}
	return je.Failures[0]
}

// Duration は実行時間を返します。終了していない場合は 0 です。
func (je *JobExecution) Duration() time.Duration {
	if je.EndTime.IsZero() || je.StartTime.IsZero() {
		return 0
	}
	return je.EndTime.Sub(je.StartTime)
}

// StepExecution はステップの単一の実行を表す構造体です。
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ReadCount        int
	WriteCount       int
	CommitCount      int // 成功した Writer 呼び出しの回数
	FilterCount      int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
}

// NewStepExecution は新しい StepExecution を作成し、JobExecution に追加します。
func NewStepExecution(stepName string, jobExecution *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               uuid.New().String(),
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
	if jobExecution != nil {
		jobExecution.StepExecutions = append(jobExecution.StepExecutions, se)
	}
	return se
}

// MarkAsStarted は StepExecution の状態を実行中に更新します。
func (se *StepExecution) MarkAsStarted() {
	se.Status = BatchStatusStarted
	se.StartTime = time.Now()
	se.LastUpdated = se.StartTime
}

// MarkAsCompleted は StepExecution の状態を完了に更新します。
func (se *StepExecution) MarkAsCompleted() {
	se.Status = BatchStatusCompleted
	se.ExitStatus = ExitStatusCompleted
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
}

// MarkAsFailed は StepExecution の状態を失敗に更新し、エラー情報を追加します。
func (se *StepExecution) MarkAsFailed(err error) {
	se.Status = BatchStatusFailed
	se.ExitStatus = ExitStatusFailed
	se.EndTime = time.Now()
	se.LastUpdated = se.EndTime
	if err != nil {
		se.Failures = append(se.Failures, err)
	}
}

// Cause は最初に記録された失敗原因を返します。
func (se *StepExecution) Cause() error {
	if len(se.Failures) == 0 {
		return nil
	}
	return se.Failures[0]
}
