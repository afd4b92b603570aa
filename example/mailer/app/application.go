package app

import (
	"context"
	"errors"
	"io"
	"io/fs"

	godotenv "github.com/joho/godotenv"

	appJob "cronjob/example/mailer/job"
	personrepo "cronjob/example/mailer/repository"
	personwriter "cronjob/example/mailer/step/writer"
	config "cronjob/pkg/batch/config"
	initializer "cronjob/pkg/batch/initializer"
	core "cronjob/pkg/batch/job/core"
	incrementer "cronjob/pkg/batch/job/incrementer"
	joblauncher "cronjob/pkg/batch/job/joblauncher"
	schedule "cronjob/pkg/batch/schedule"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// shutdowner はアプリケーション終了時に解放が必要な writer が実装します。
type shutdowner interface {
	Shutdown() error
}

// loadEnvFile は .env ファイルをロードします。存在しない場合は環境変数のみを使用します。
func loadEnvFile(envFilePath string) {
	if envFilePath == "" {
		logger.Debugf(".env ファイルのパスが指定されていないため、ロードをスキップします。")
		return
	}
	if err := godotenv.Load(envFilePath); err != nil {
		logger.Warnf(".env ファイル '%s' のロードに失敗しました (本番環境では環境変数を使用): %v", envFilePath, err)
		return
	}
	logger.Infof(".env ファイル '%s' をロードしました。", envFilePath)
}

// setupApplication は初期化処理を実行し、ジョブを組み立てます。
// 返される cleanup は err が nil の場合に必ず呼び出す必要があります。
func setupApplication(ctx context.Context, envFilePath string, embeddedConfig []byte, migrationFS fs.FS) (*initializer.BatchInitializer, core.Job, func(), error) {
	loadEnvFile(envFilePath)

	batchInitializer := initializer.NewBatchInitializer(&config.Config{EmbeddedConfig: embeddedConfig})
	batchInitializer.MigrationFS = migrationFS

	if _, err := batchInitializer.Initialize(ctx); err != nil {
		batchInitializer.Close()
		return nil, nil, nil, exception.NewBatchError("app", "バッチアプリケーションの初期化に失敗しました", err, false, false)
	}
	cfg := batchInitializer.Config

	cleanup := func() {
		if closeErr := batchInitializer.Close(); closeErr != nil {
			logger.Errorf("バッチアプリケーションのリソースクローズ中にエラーが発生しました: %v", closeErr)
		} else {
			logger.Infof("バッチアプリケーションのリソースを正常にクローズしました。")
		}
	}

	r, err := personrepo.NewPersonReader(cfg, batchInitializer.DB)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	w, err := personwriter.NewPersonWriter(cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if s, ok := w.(shutdowner); ok {
		closeInitializer := cleanup
		cleanup = func() {
			if err := s.Shutdown(); err != nil {
				logger.Errorf("writer の接続のクローズに失敗しました: %v", err)
			}
			closeInitializer()
		}
	}

	mailerJob, err := appJob.NewMailerJob(cfg, batchInitializer.JobRepository, r, w)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	logger.Infof("バッチアプリケーションの初期化が完了しました。ジョブ: '%s', チャンクサイズ: %d", mailerJob.JobName(), cfg.Batch.ChunkSize)
	return batchInitializer, mailerJob, cleanup, nil
}

// newLaunchFunc はトリガーごとに time パラメータを設定してジョブを起動するコールバックを返します。
// ジョブの失敗は JobLauncher がログに記録するため、起動処理自体のエラーのみを返します。
func newLaunchFunc(launcher joblauncher.JobLauncher, j core.Job, clock *incrementer.TimestampIncrementer) schedule.LaunchFunc {
	return func(ctx context.Context, trigger schedule.Trigger) error {
		params := core.NewJobParameters()
		params.Put(appJob.TimeParameter, clock.Next())

		jobExecution, err := launcher.Launch(ctx, j, params)
		if err != nil {
			return err
		}
		logger.Debugf("トリガー #%d の JobExecution (ID: %s) が終了しました。ステータス: %s", trigger.Seq, jobExecution.ID, jobExecution.Status)
		return nil
	}
}

// serve はスケジューラを実行し、ctx の終了またはコンソールからの終了要求まで待機します。
func serve(ctx context.Context, cfg *config.Config, launcher joblauncher.JobLauncher, j core.Job, console io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock := incrementer.NewTimestampIncrementer(appJob.TimeParameter)
	scheduler, err := schedule.NewSchedulerFromConfig(j.JobName(), cfg.Batch.Schedule, newLaunchFunc(launcher, j, clock))
	if err != nil {
		return err
	}

	if console != nil {
		go WaitForQuit(ctx, console, out, cancel)
	}
	return scheduler.Start(ctx)
}

// RunApplication はアプリケーションのメインロジックを実行し、終了コードを返します。
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig []byte, migrationFS fs.FS, console io.Reader, out io.Writer) int {
	batchInitializer, mailerJob, cleanup, err := setupApplication(ctx, envFilePath, embeddedConfig, migrationFS)
	if err != nil {
		return handleApplicationError(err)
	}
	defer cleanup()

	if err := serve(ctx, batchInitializer.Config, batchInitializer.JobLauncher, mailerJob, console, out); err != nil {
		return handleApplicationError(err)
	}
	return 0
}

// handleApplicationError はアプリケーションのエラーをログに出力し、終了コードを返します。
func handleApplicationError(err error) int {
	logger.Errorf("アプリケーションの実行中にエラーが発生しました: %v", err)

	var be *exception.BatchError
	if errors.As(err, &be) {
		logger.Errorf("BatchError 詳細: Module=%s, Message=%s, OriginalErr=%v", be.Module, be.Message, be.OriginalErr)
		if be.StackTrace != "" {
			logger.Debugf("BatchError StackTrace:\n%s", be.StackTrace)
		}
	}
	if errors.Is(err, exception.ErrStoreUnavailable) {
		logger.Errorf("レコードストアを利用できません。設定とデータベースの状態を確認してください。")
	}
	return 1
}
