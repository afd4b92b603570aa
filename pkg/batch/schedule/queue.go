package schedule

import (
	"context"
	"sync"

	"cronjob/pkg/batch/config"
)

// triggerQueue はタイマーからワーカーへトリガーを渡す FIFO です。
// capacity が 0 の場合は件数の上限を持ちません。
type triggerQueue struct {
	mu       sync.Mutex
	items    []Trigger
	busy     bool // ワーカーがトリガーを処理中か
	policy   string
	capacity int
	ready    chan struct{}
}

func newTriggerQueue(policy string, capacity int) *triggerQueue {
	return &triggerQueue{policy: policy, capacity: capacity, ready: make(chan struct{}, 1)}
}

// offer はトリガーを末尾に積みます。ポリシーにより受け付けられない場合は false を返します。
func (q *triggerQueue) offer(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.policy {
	case config.OverrunPolicySkip:
		if q.busy || len(q.items) > 0 {
			return false
		}
	default:
		if q.capacity > 0 && len(q.items) >= q.capacity {
			return false
		}
	}
	q.items = append(q.items, t)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// take は先頭のトリガーを取り出します。空の場合は積まれるか ctx が終了するまで待ちます。
func (q *triggerQueue) take(ctx context.Context) (Trigger, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = Trigger{}
			q.items = q.items[1:]
			q.busy = true
			q.mu.Unlock()
			return t, true
		}
		q.busy = false
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Trigger{}, false
		case <-q.ready:
		}
	}
}

// pending は起動待ちのトリガー数を返します。
func (q *triggerQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
