package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"cronjob/pkg/batch/config"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// Trigger はスケジューラの一回の発火を表します。
type Trigger struct {
	JobName string
	Seq     int64 // 1 から始まる発火番号
	FiredAt time.Time
}

// LaunchFunc はトリガーごとにジョブを同期的に起動するコールバックです。
type LaunchFunc func(ctx context.Context, trigger Trigger) error

// Option は Scheduler を設定します。
type Option func(*Scheduler)

// WithInitialDelay は最初の発火までの待ち時間を設定します。
func WithInitialDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.initialDelay = d }
}

// WithFixedRate は発火間隔を設定します。間隔は前回の起動の終了ではなく前回の発火から数えます。
func WithFixedRate(d time.Duration) Option {
	return func(s *Scheduler) { s.fixedRate = d }
}

// WithSchedule は固定間隔の代わりに cron スケジュールで発火させます。
func WithSchedule(schedule cronlib.Schedule) Option {
	return func(s *Scheduler) { s.schedule = schedule }
}

// WithOverrunPolicy は起動中に発火したトリガーの扱いを設定します。
// queue の場合は capacity 件まで待たせ、skip の場合は破棄します。
// queue で capacity が 0 の場合は上限なく待たせます。
func WithOverrunPolicy(policy string, capacity int) Option {
	return func(s *Scheduler) {
		s.policy = policy
		s.capacity = capacity
	}
}

// cronParser は標準の 5 フィールドと "@every 30s" のような記述子を受け付けます。
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule は cron 式を解析します。
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, exception.NewBatchError("scheduler", fmt.Sprintf("cron 式 '%s' の解析に失敗しました", expr), err, false, false)
	}
	return sched, nil
}

// Scheduler は一つのタイマーゴルーチンでトリガーを生成し、一つのワーカーゴルーチンで順番に起動します。
type Scheduler struct {
	jobName string
	launch  LaunchFunc

	initialDelay time.Duration
	fixedRate    time.Duration
	schedule     cronlib.Schedule
	policy       string
	capacity     int

	seq     atomic.Int64
	fired   atomic.Int64
	dropped atomic.Int64
}

// NewScheduler は新しい Scheduler を作成します。
func NewScheduler(jobName string, launch LaunchFunc, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		jobName:      jobName,
		launch:       launch,
		initialDelay: 2000 * time.Millisecond,
		fixedRate:    5000 * time.Millisecond,
		policy:       config.OverrunPolicyQueue,
		capacity:     0,
	}
	for _, opt := range opts {
		opt(s)
	}

	if launch == nil {
		return nil, exception.NewBatchErrorf("scheduler", "ジョブ '%s' の起動コールバックが指定されていません", jobName)
	}
	if s.schedule == nil && s.fixedRate <= 0 {
		return nil, exception.NewBatchErrorf("scheduler", "発火間隔は正の値である必要があります: %s", s.fixedRate)
	}
	if s.initialDelay < 0 {
		return nil, exception.NewBatchErrorf("scheduler", "初回遅延は 0 以上である必要があります: %s", s.initialDelay)
	}
	switch s.policy {
	case config.OverrunPolicyQueue:
		if s.capacity < 0 {
			return nil, exception.NewBatchErrorf("scheduler", "キュー容量は 0 以上である必要があります: %d", s.capacity)
		}
	case config.OverrunPolicySkip:
	default:
		return nil, exception.NewBatchErrorf("scheduler", "未対応の overrun_policy です: %s", s.policy)
	}
	return s, nil
}

// NewSchedulerFromConfig は設定から Scheduler を作成します。
func NewSchedulerFromConfig(jobName string, cfg config.ScheduleConfig, launch LaunchFunc) (*Scheduler, error) {
	opts := []Option{
		WithInitialDelay(time.Duration(cfg.InitialDelayMs) * time.Millisecond),
		WithFixedRate(time.Duration(cfg.FixedRateMs) * time.Millisecond),
		WithOverrunPolicy(cfg.OverrunPolicy, cfg.QueueCapacity),
	}
	if cfg.Cron != "" {
		sched, err := ParseSchedule(cfg.Cron)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithSchedule(sched))
	}
	return NewScheduler(jobName, launch, opts...)
}

// Fired は発火したトリガーの数を返します。
func (s *Scheduler) Fired() int64 { return s.fired.Load() }

// Dropped は起動されずに破棄されたトリガーの数を返します。
func (s *Scheduler) Dropped() int64 { return s.dropped.Load() }

// Start はスケジューラを開始し、ctx が終了するまでブロックします。
// 終了時は実行中の起動の完了を待ち、キューに残ったトリガーは起動しません。
func (s *Scheduler) Start(ctx context.Context) error {
	triggers := newTriggerQueue(s.policy, s.capacity)

	if s.schedule != nil {
		logger.Infof("スケジューラを開始します。ジョブ: '%s', 初回遅延: %s, cron スケジュール, overrun_policy: %s", s.jobName, s.initialDelay, s.policy)
	} else {
		logger.Infof("スケジューラを開始します。ジョブ: '%s', 初回遅延: %s, 間隔: %s, overrun_policy: %s", s.jobName, s.initialDelay, s.fixedRate, s.policy)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.timerLoop(ctx, triggers)
	}()
	go func() {
		defer wg.Done()
		s.worker(ctx, triggers)
	}()
	wg.Wait()

	logger.Infof("スケジューラを停止しました。発火: %d, 破棄: %d, 未起動: %d", s.Fired(), s.Dropped(), triggers.pending())
	return nil
}

func (s *Scheduler) timerLoop(ctx context.Context, out *triggerQueue) {
	if !sleep(ctx, s.initialDelay) {
		return
	}

	if s.schedule == nil {
		ticker := time.NewTicker(s.fixedRate)
		defer ticker.Stop()
		s.fire(out, time.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.fire(out, now)
			}
		}
	}

	for {
		next := s.schedule.Next(time.Now())
		if next.IsZero() {
			logger.Warnf("ジョブ '%s' の cron スケジュールに次の発火時刻がありません。", s.jobName)
			return
		}
		if !sleep(ctx, time.Until(next)) {
			return
		}
		s.fire(out, time.Now())
	}
}

// fire はトリガーを起動待ちキューに積みます。ポリシーにより受け付けられない場合は破棄します。
func (s *Scheduler) fire(out *triggerQueue, now time.Time) {
	t := Trigger{JobName: s.jobName, Seq: s.seq.Add(1), FiredAt: now}
	s.fired.Add(1)
	if out.offer(t) {
		logger.Debugf("トリガー #%d を発行しました。", t.Seq)
		return
	}
	s.dropped.Add(1)
	if s.policy == config.OverrunPolicySkip {
		logger.Warnf("ジョブ '%s' は実行中のため、トリガー #%d をスキップしました。", s.jobName, t.Seq)
	} else {
		logger.Warnf("起動待ちキューが満杯 (%d 件) のため、ジョブ '%s' のトリガー #%d を破棄しました。", s.capacity, s.jobName, t.Seq)
	}
}

func (s *Scheduler) worker(ctx context.Context, in *triggerQueue) {
	for {
		t, ok := in.take(ctx)
		if !ok || ctx.Err() != nil {
			return
		}
		if err := s.launch(ctx, t); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debugf("トリガー #%d の起動はキャンセルされました: %v", t.Seq, err)
				continue
			}
			logger.Errorf("トリガー #%d のジョブ起動に失敗しました: %v", t.Seq, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
