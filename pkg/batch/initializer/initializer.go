package initializer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jmoiron/sqlx"

	config "cronjob/pkg/batch/config"
	database "cronjob/pkg/batch/database"
	connector "cronjob/pkg/batch/database/connector"
	joblauncher "cronjob/pkg/batch/job/joblauncher"
	repository "cronjob/pkg/batch/repository"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// MigrationsDir は埋め込みマイグレーション FS 内のディレクトリ名です。
const MigrationsDir = "resources/migrations"

// BatchInitializer はバッチアプリケーションの初期化処理を担当します。
type BatchInitializer struct {
	Config        *config.Config
	MigrationFS   fs.FS // 埋め込みマイグレーションスクリプト。nil の場合はマイグレーションを行いません。
	DB            *sqlx.DB
	JobRepository repository.JobRepository
	JobLauncher   *joblauncher.SimpleJobLauncher
	connect       func(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error)
}

// NewBatchInitializer は新しい BatchInitializer のインスタンスを作成します。
// cfg.EmbeddedConfig に埋め込み設定ファイルの内容を設定して渡します。
func NewBatchInitializer(cfg *config.Config) *BatchInitializer {
	return &BatchInitializer{
		Config:  cfg,
		connect: connector.ConnectWithRetry,
	}
}

// Initialize は設定のロード、ロガーの設定、レコードストアへの接続とマイグレーション、
// JobRepository と JobLauncher の生成を順に行います。
func (bi *BatchInitializer) Initialize(ctx context.Context) (*joblauncher.SimpleJobLauncher, error) {
	logger.Debugf("BatchInitializer.Initialize が呼び出されました。")

	// Step 1: 設定のロード
	cfg, err := config.NewBytesConfigLoader(bi.Config.EmbeddedConfig).Load()
	if err != nil {
		return nil, exception.NewBatchError("initializer", "設定のロードに失敗しました", err, false, false)
	}
	bi.Config = cfg

	logger.Configure(logger.Options{
		Level:   cfg.System.Logging.Level,
		Format:  cfg.System.Logging.Format,
		NoColor: cfg.System.Logging.NoColor,
	})
	logger.Infof("ロギングレベルを '%s' に設定しました。", cfg.System.Logging.Level)

	// Step 2: レコードストアへの接続とマイグレーション
	if err := bi.openRecordStore(ctx); err != nil {
		return nil, err
	}

	// Step 3: Job Repository と JobLauncher の生成
	bi.JobRepository = repository.NewInMemoryJobRepository(cfg.Batch.HistoryLimit)
	logger.Infof("Job Repository を生成しました。保持件数: %d", cfg.Batch.HistoryLimit)

	bi.JobLauncher = joblauncher.NewSimpleJobLauncher(bi.JobRepository)
	logger.Infof("SimpleJobLauncher を生成しました。")

	return bi.JobLauncher, nil
}

func (bi *BatchInitializer) openRecordStore(ctx context.Context) error {
	dbCfg := bi.Config.Database
	dbType := strings.ToLower(dbCfg.Type)
	if dbType == "memory" {
		logger.Infof("データベースタイプが memory のため、レコードストアへの接続をスキップします。")
		return nil
	}

	db, err := bi.connect(ctx, dbCfg)
	if err != nil {
		return exception.NewKindError(exception.ErrStoreUnavailable, "initializer", "データベースへの接続に失敗しました", err)
	}
	bi.DB = db

	if !database.SupportsMigrations(dbType) {
		logger.Infof("データベースタイプ '%s' はマイグレーションに対応していないため、スキップします。", dbType)
		return nil
	}

	src := database.MigrationSource{Path: dbCfg.AppMigrationPath, FS: bi.MigrationFS, Dir: MigrationsDir}
	if src.Path == "" && src.FS == nil {
		logger.Infof("マイグレーションスクリプトが指定されていません。スキップします。")
		return nil
	}
	if err := database.RunMigrations(ctx, db, dbType, src, dbCfg.Seed); err != nil {
		return exception.NewKindError(exception.ErrStoreUnavailable, "initializer", "アプリケーションのマイグレーションに失敗しました", err)
	}
	return nil
}

// Close は BatchInitializer が保持するリソースを解放します。
func (bi *BatchInitializer) Close() error {
	var errs []error
	if bi.JobRepository != nil {
		if closeErr := bi.JobRepository.Close(); closeErr != nil {
			logger.Errorf("Job Repository のクローズに失敗しました: %v", closeErr)
			errs = append(errs, fmt.Errorf("Job Repository クローズエラー: %w", closeErr))
		}
	}
	if bi.DB != nil {
		if closeErr := bi.DB.Close(); closeErr != nil {
			logger.Errorf("データベース接続のクローズに失敗しました: %v", closeErr)
			errs = append(errs, fmt.Errorf("データベース接続クローズエラー: %w", closeErr))
		} else {
			logger.Infof("データベース接続を正常にクローズしました。")
		}
	}
	return errors.Join(errs...)
}
