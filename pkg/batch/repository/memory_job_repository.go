package repository

import (
	"context"
	"sort"
	"sync"

	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

const module = "job_repository"

// InMemoryJobRepository はプロセス内でのみ実行履歴を保持する JobRepository の実装です。
// 保持する JobExecution はジョブ名ごとに historyLimit 件までで、古いものから破棄されます。
type InMemoryJobRepository struct {
	mu           sync.RWMutex
	historyLimit int

	instances  map[string]*core.JobInstance
	byHash     map[string]*core.JobInstance // jobName + "|" + ParametersHash
	executions map[string]*core.JobExecution
	// ジョブ名ごとの JobExecution ID (古い順)
	history map[string][]string
	steps   map[string][]*core.StepExecution
}

// NewInMemoryJobRepository は新しい InMemoryJobRepository を作成します。historyLimit が 0 以下の場合は無制限です。
func NewInMemoryJobRepository(historyLimit int) *InMemoryJobRepository {
	return &InMemoryJobRepository{
		historyLimit: historyLimit,
		instances:    make(map[string]*core.JobInstance),
		byHash:       make(map[string]*core.JobInstance),
		executions:   make(map[string]*core.JobExecution),
		history:      make(map[string][]string),
		steps:        make(map[string][]*core.StepExecution),
	}
}

var _ JobRepository = (*InMemoryJobRepository)(nil)

func hashKey(jobName, hash string) string {
	return jobName + "|" + hash
}

// SaveJobInstance は新しい JobInstance を保存します。
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := hashKey(jobInstance.JobName, jobInstance.ParametersHash)
	if _, exists := r.byHash[key]; exists {
		return exception.NewBatchErrorf(module, "JobInstance (JobName: %s, Parameters: %s) は既に存在します", jobInstance.JobName, jobInstance.Parameters)
	}
	r.instances[jobInstance.ID] = jobInstance
	r.byHash[key] = jobInstance
	logger.Debugf("JobInstance (ID: %s, JobName: %s) を保存しました。", jobInstance.ID, jobInstance.JobName)
	return nil
}

// FindJobInstanceByJobNameAndParameters は指定されたジョブ名とパラメータに一致する JobInstance を検索します。
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byHash[hashKey(jobName, params.Hash())], nil
}

// FindJobInstanceByID は指定された ID の JobInstance を検索します。
func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ji, ok := r.instances[instanceID]
	if !ok {
		return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) が見つかりませんでした", instanceID)
	}
	return ji, nil
}

// GetJobInstanceCount は指定されたジョブ名の JobInstance の数を返します。
func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ji := range r.instances {
		if ji.JobName == jobName {
			n++
		}
	}
	return n, nil
}

// GetJobNames はリポジトリに存在する全てのジョブ名を返します。
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, ji := range r.instances {
		if _, ok := seen[ji.JobName]; ok {
			continue
		}
		seen[ji.JobName] = struct{}{}
		names = append(names, ji.JobName)
	}
	sort.Strings(names)
	return names, nil
}

// SaveJobExecution は新しい JobExecution を保存し、保持件数を超えた古い履歴を破棄します。
func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executions[jobExecution.ID]; exists {
		return exception.NewBatchErrorf(module, "JobExecution (ID: %s) は既に存在します", jobExecution.ID)
	}
	r.executions[jobExecution.ID] = jobExecution
	r.history[jobExecution.JobName] = append(r.history[jobExecution.JobName], jobExecution.ID)
	r.evict(jobExecution.JobName)
	return nil
}

// evict は r.mu をロックした状態で呼び出す必要があります。
func (r *InMemoryJobRepository) evict(jobName string) {
	ids := r.history[jobName]
	if r.historyLimit <= 0 || len(ids) <= r.historyLimit {
		return
	}
	drop := ids[:len(ids)-r.historyLimit]
	for _, id := range drop {
		je := r.executions[id]
		delete(r.executions, id)
		delete(r.steps, id)
		if je != nil && !r.hasExecutions(je.JobInstanceID) {
			if ji, ok := r.instances[je.JobInstanceID]; ok {
				delete(r.byHash, hashKey(ji.JobName, ji.ParametersHash))
				delete(r.instances, ji.ID)
			}
		}
	}
	r.history[jobName] = append([]string(nil), ids[len(drop):]...)
	logger.Debugf("ジョブ '%s' の古い実行履歴を %d 件破棄しました。", jobName, len(drop))
}

func (r *InMemoryJobRepository) hasExecutions(jobInstanceID string) bool {
	for _, je := range r.executions {
		if je.JobInstanceID == jobInstanceID {
			return true
		}
	}
	return false
}

// UpdateJobExecution は既存の JobExecution の状態を更新します。
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.executions[jobExecution.ID]; !ok {
		return exception.NewBatchErrorf(module, "更新対象の JobExecution (ID: %s) が見つかりませんでした", jobExecution.ID)
	}
	r.executions[jobExecution.ID] = jobExecution
	return nil
}

// FindJobExecutionByID は指定された ID の JobExecution を検索します。
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	je, ok := r.executions[executionID]
	if !ok {
		return nil, exception.NewBatchErrorf(module, "JobExecution (ID: %s) が見つかりませんでした", executionID)
	}
	return je, nil
}

// FindLatestJobExecution は指定された JobInstance の最新の JobExecution を検索します。
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ji, ok := r.instances[jobInstanceID]
	if ok {
		ids := r.history[ji.JobName]
		for i := len(ids) - 1; i >= 0; i-- {
			if je := r.executions[ids[i]]; je.JobInstanceID == jobInstanceID {
				return je, nil
			}
		}
	}
	return nil, exception.NewBatchErrorf(module, "JobInstance (ID: %s) の JobExecution が見つかりませんでした", jobInstanceID)
}

// FindLatestJobExecutionByJobName は指定されたジョブ名の最新の JobExecution を検索します。
func (r *InMemoryJobRepository) FindLatestJobExecutionByJobName(ctx context.Context, jobName string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.history[jobName]
	if len(ids) == 0 {
		return nil, nil
	}
	return r.executions[ids[len(ids)-1]], nil
}

// FindJobExecutionsByJobInstance は指定された JobInstance に関連する全ての JobExecution を古い順に返します。
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *core.JobInstance) ([]*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*core.JobExecution, 0)
	for _, id := range r.history[jobInstance.JobName] {
		if je := r.executions[id]; je.JobInstanceID == jobInstance.ID {
			result = append(result, je)
		}
	}
	return result, nil
}

// SaveStepExecution は新しい StepExecution を保存します。
func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) に JobExecution が設定されていません", stepExecution.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jeID := stepExecution.JobExecution.ID
	if _, ok := r.executions[jeID]; !ok {
		return exception.NewBatchErrorf(module, "StepExecution の親 JobExecution (ID: %s) が見つかりませんでした", jeID)
	}
	r.steps[jeID] = append(r.steps[jeID], stepExecution)
	return nil
}

// UpdateStepExecution は既存の StepExecution の状態を更新します。
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchErrorf(module, "StepExecution (ID: %s) に JobExecution が設定されていません", stepExecution.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := r.steps[stepExecution.JobExecution.ID]
	for i, se := range steps {
		if se.ID == stepExecution.ID {
			steps[i] = stepExecution
			return nil
		}
	}
	return exception.NewBatchErrorf(module, "更新対象の StepExecution (ID: %s) が見つかりませんでした", stepExecution.ID)
}

// FindStepExecutionsByJobExecutionID は指定された JobExecution ID に関連する全ての StepExecution を検索します。
func (r *InMemoryJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*core.StepExecution(nil), r.steps[jobExecutionID]...), nil
}

// Close は保持している履歴を破棄します。
func (r *InMemoryJobRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*core.JobInstance)
	r.byHash = make(map[string]*core.JobInstance)
	r.executions = make(map[string]*core.JobExecution)
	r.history = make(map[string][]string)
	r.steps = make(map[string][]*core.StepExecution)
	return nil
}
