package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronjob/pkg/batch/config"
)

type run struct {
	trigger    Trigger
	start, end time.Time
}

type recorder struct {
	mu      sync.Mutex
	runs    []run
	active  int
	overlap bool
	delay   time.Duration
}

func (r *recorder) launch(ctx context.Context, t Trigger) error {
	r.mu.Lock()
	r.active++
	if r.active > 1 {
		r.overlap = true
	}
	r.mu.Unlock()

	start := time.Now()
	time.Sleep(r.delay)

	r.mu.Lock()
	r.active--
	r.runs = append(r.runs, run{trigger: t, start: start, end: time.Now()})
	r.mu.Unlock()
	return nil
}

func (r *recorder) snapshot() []run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]run(nil), r.runs...)
}

func startFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, s.Start(ctx))
}

func TestSchedulerRunsSequentiallyUnderSlowJob(t *testing.T) {
	rec := &recorder{delay: 30 * time.Millisecond}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(5*time.Millisecond),
		WithFixedRate(10*time.Millisecond),
		WithOverrunPolicy(config.OverrunPolicyQueue, 64),
	)
	require.NoError(t, err)

	startFor(t, s, 200*time.Millisecond)

	runs := rec.snapshot()
	require.GreaterOrEqual(t, len(runs), 2)
	assert.False(t, rec.overlap, "二つの実行が重なってはいけない")
	for i := 1; i < len(runs); i++ {
		assert.False(t, runs[i].start.Before(runs[i-1].end))
		assert.Greater(t, runs[i].trigger.Seq, runs[i-1].trigger.Seq, "トリガーは発火順に起動される")
		assert.True(t, runs[i].trigger.FiredAt.After(runs[i-1].trigger.FiredAt))
	}
	assert.Greater(t, s.Fired(), int64(len(runs)), "遅いジョブの間も発火は続き、キューに積まれる")
	assert.Zero(t, s.Dropped())
}

func TestSchedulerSkipPolicyDropsTicksDuringRun(t *testing.T) {
	rec := &recorder{delay: 50 * time.Millisecond}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(0),
		WithFixedRate(10*time.Millisecond),
		WithOverrunPolicy(config.OverrunPolicySkip, 0),
	)
	require.NoError(t, err)

	startFor(t, s, 180*time.Millisecond)

	assert.False(t, rec.overlap)
	assert.Positive(t, s.Dropped())
	assert.LessOrEqual(t, s.Dropped()+int64(len(rec.snapshot())), s.Fired())
}

func TestSchedulerQueueOverflowIsDropped(t *testing.T) {
	rec := &recorder{delay: 100 * time.Millisecond}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(0),
		WithFixedRate(5*time.Millisecond),
		WithOverrunPolicy(config.OverrunPolicyQueue, 2),
	)
	require.NoError(t, err)

	startFor(t, s, 80*time.Millisecond)

	assert.Positive(t, s.Dropped())
}

func TestSchedulerUnboundedQueueNeverDrops(t *testing.T) {
	rec := &recorder{delay: 40 * time.Millisecond}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(0),
		WithFixedRate(2*time.Millisecond),
		WithOverrunPolicy(config.OverrunPolicyQueue, 0),
	)
	require.NoError(t, err)

	startFor(t, s, 120*time.Millisecond)

	runs := rec.snapshot()
	assert.Zero(t, s.Dropped(), "上限なしのキューでは破棄しない")
	assert.Greater(t, s.Fired(), int64(len(runs)+16), "遅いジョブの間に積まれたトリガーが上限を超えても保持される")
	assert.False(t, rec.overlap)
	for i := 1; i < len(runs); i++ {
		assert.Equal(t, runs[i-1].trigger.Seq+1, runs[i].trigger.Seq, "キューのトリガーは発火順に一件ずつ起動される")
	}
}

func TestTriggerQueueSkipRefusesWhileBusy(t *testing.T) {
	ctx := context.Background()
	q := newTriggerQueue(config.OverrunPolicySkip, 0)

	assert.True(t, q.offer(Trigger{Seq: 1}))
	assert.False(t, q.offer(Trigger{Seq: 2}), "待ちのトリガーがあれば受け付けない")

	got, ok := q.take(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Seq)
	assert.False(t, q.offer(Trigger{Seq: 3}), "処理中は受け付けない")

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, ok = q.take(waitCtx)
	assert.False(t, ok)
	assert.True(t, q.offer(Trigger{Seq: 4}), "ワーカーが待機に戻った後は受け付ける")
}

func TestTriggerQueueBoundedCapacity(t *testing.T) {
	q := newTriggerQueue(config.OverrunPolicyQueue, 2)
	assert.True(t, q.offer(Trigger{Seq: 1}))
	assert.True(t, q.offer(Trigger{Seq: 2}))
	assert.False(t, q.offer(Trigger{Seq: 3}))
	assert.Equal(t, 2, q.pending())

	got, ok := q.take(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Seq)
	assert.True(t, q.offer(Trigger{Seq: 4}))
}

func TestSchedulerHonoursInitialDelay(t *testing.T) {
	rec := &recorder{}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(time.Hour),
		WithFixedRate(time.Millisecond),
	)
	require.NoError(t, err)

	startFor(t, s, 30*time.Millisecond)

	assert.Zero(t, s.Fired())
	assert.Empty(t, rec.snapshot())
}

func TestSchedulerStopsLaunchingAfterCancel(t *testing.T) {
	rec := &recorder{delay: 40 * time.Millisecond}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(0),
		WithFixedRate(5*time.Millisecond),
	)
	require.NoError(t, err)

	startFor(t, s, 60*time.Millisecond)
	launched := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, launched, len(rec.snapshot()), "停止後にキューのトリガーを起動しない")
}

// everySchedule はサブ秒の間隔を持つ cron.Schedule のテスト用実装です。
type everySchedule time.Duration

func (e everySchedule) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

func TestSchedulerUsesCronSchedule(t *testing.T) {
	rec := &recorder{}
	s, err := NewScheduler("mailerJob", rec.launch,
		WithInitialDelay(0),
		WithFixedRate(0),
		WithSchedule(everySchedule(10*time.Millisecond)),
	)
	require.NoError(t, err)

	startFor(t, s, 75*time.Millisecond)

	assert.GreaterOrEqual(t, len(rec.snapshot()), 3)
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("@every 5s")
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(5*time.Second), sched.Next(now))

	_, err = ParseSchedule("not a cron")
	assert.Error(t, err)
}

func TestNewSchedulerValidation(t *testing.T) {
	noop := func(context.Context, Trigger) error { return nil }

	_, err := NewScheduler("mailerJob", nil)
	assert.Error(t, err)
	_, err = NewScheduler("mailerJob", noop, WithFixedRate(0))
	assert.Error(t, err)
	_, err = NewScheduler("mailerJob", noop, WithInitialDelay(-time.Second))
	assert.Error(t, err)
	_, err = NewScheduler("mailerJob", noop, WithOverrunPolicy("coalesce", 1))
	assert.Error(t, err)
	_, err = NewScheduler("mailerJob", noop, WithOverrunPolicy(config.OverrunPolicyQueue, -1))
	assert.Error(t, err)
	s, err := NewScheduler("mailerJob", noop, WithOverrunPolicy(config.OverrunPolicyQueue, 0))
	require.NoError(t, err)
	assert.Zero(t, s.capacity)
}

func TestNewSchedulerFromConfig(t *testing.T) {
	noop := func(context.Context, Trigger) error { return nil }
	cfg := config.NewConfig().Batch.Schedule

	s, err := NewSchedulerFromConfig("mailerJob", cfg, noop)
	require.NoError(t, err)
	assert.Equal(t, 2000*time.Millisecond, s.initialDelay)
	assert.Equal(t, 5000*time.Millisecond, s.fixedRate)
	assert.Nil(t, s.schedule)

	cfg.Cron = "@every 1m"
	s, err = NewSchedulerFromConfig("mailerJob", cfg, noop)
	require.NoError(t, err)
	assert.NotNil(t, s.schedule)

	cfg.Cron = "bogus"
	_, err = NewSchedulerFromConfig("mailerJob", cfg, noop)
	assert.Error(t, err)
}
