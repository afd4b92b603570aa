package joblauncher

import (
	"context"
	"sync"
)

// ticketQueue は到着順に一つずつ実行権を渡す排他制御です。
type ticketQueue struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

// acquire は実行権を得るまで待機します。ctx が終了した場合は待機を取りやめ、ctx のエラーを返します。
func (q *ticketQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy && len(q.waiters) == 0 {
		q.busy = true
		q.mu.Unlock()
		return nil
	}
	ticket := make(chan struct{})
	q.waiters = append(q.waiters, ticket)
	q.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ticket {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// キャンセルと同時に実行権を受け取っていた場合は次の待機者に渡す
		q.release()
		return ctx.Err()
	}
}

// release は実行権を先頭の待機者に渡します。待機者がいなければ解放します。
func (q *ticketQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) == 0 {
		q.busy = false
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	close(next)
}

// pending は実行権を待っている数を返します。
func (q *ticketQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
