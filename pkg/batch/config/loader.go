package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// BytesConfigLoader はバイトスライスから設定をロードする ConfigLoader の実装です。
type BytesConfigLoader struct {
	data   []byte
	lookup func(string) (string, bool)
}

// NewBytesConfigLoader は新しい BytesConfigLoader のインスタンスを作成します。
func NewBytesConfigLoader(data []byte) *BytesConfigLoader {
	return &BytesConfigLoader{data: data, lookup: os.LookupEnv}
}

// WithLookup は環境変数の参照関数を差し替えます。
func (l *BytesConfigLoader) WithLookup(lookup func(string) (string, bool)) *BytesConfigLoader {
	l.lookup = lookup
	return l
}

// Load はデフォルト値に YAML と環境変数を順に重ねて設定をロードし、検証します。
func (l *BytesConfigLoader) Load() (*Config, error) {
	cfg := NewConfig()

	// yaml.Unmarshal は YAML に存在しないフィールドを変更しないため、デフォルト値が残る
	if err := yaml.Unmarshal(l.data, cfg); err != nil {
		return nil, exception.NewBatchError("config", "YAML設定のパースに失敗しました", err, false, false)
	}
	cfg.EmbeddedConfig = l.data

	l.loadEnvVars(cfg)
	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *BytesConfigLoader) str(key string, dst *string) {
	if v, ok := l.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (l *BytesConfigLoader) integer(key string, dst *int) {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = n
}

func (l *BytesConfigLoader) long(key string, dst *int64) {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = n
}

func (l *BytesConfigLoader) boolean(key string, dst *bool) {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warnf("%s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = b
}

// loadEnvVars は環境変数で個別の設定値を上書きします。
func (l *BytesConfigLoader) loadEnvVars(cfg *Config) {
	db := &cfg.Database
	l.str("DATABASE_TYPE", &db.Type)
	l.str("DATABASE_HOST", &db.Host)
	l.integer("DATABASE_PORT", &db.Port)
	l.str("DATABASE_DATABASE", &db.Database)
	l.str("DATABASE_USER", &db.User)
	l.str("DATABASE_PASSWORD", &db.Password)
	l.str("DATABASE_SSLMODE", &db.Sslmode)
	l.str("DATABASE_ACCOUNT", &db.Account)
	l.str("DATABASE_WAREHOUSE", &db.Warehouse)
	l.str("DATABASE_SCHEMA", &db.Schema)
	l.str("DATABASE_APP_MIGRATION_PATH", &db.AppMigrationPath)
	l.boolean("DATABASE_SEED", &db.Seed)
	l.integer("DATABASE_MAX_OPEN_CONNS", &db.ConnectionPool.MaxOpenConns)
	l.integer("DATABASE_MAX_IDLE_CONNS", &db.ConnectionPool.MaxIdleConns)
	l.integer("DATABASE_CONN_MAX_LIFETIME_SECONDS", &db.ConnectionPool.ConnMaxLifetimeSeconds)

	b := &cfg.Batch
	l.str("BATCH_JOB_NAME", &b.JobName)
	l.integer("BATCH_CHUNK_SIZE", &b.ChunkSize)
	l.str("BATCH_QUERY", &b.Query)
	l.integer("BATCH_HISTORY_LIMIT", &b.HistoryLimit)
	l.long("BATCH_SCHEDULE_INITIAL_DELAY_MS", &b.Schedule.InitialDelayMs)
	l.long("BATCH_SCHEDULE_FIXED_RATE_MS", &b.Schedule.FixedRateMs)
	l.str("BATCH_SCHEDULE_CRON", &b.Schedule.Cron)
	l.str("BATCH_SCHEDULE_OVERRUN_POLICY", &b.Schedule.OverrunPolicy)
	l.integer("BATCH_SCHEDULE_QUEUE_CAPACITY", &b.Schedule.QueueCapacity)
	l.str("BATCH_WRITER_TYPE", &b.Writer.Type)
	l.str("BATCH_WRITER_AMQP_URL", &b.Writer.AMQP.URL)

	l.str("SYSTEM_LOGGING_LEVEL", &cfg.System.Logging.Level)
	l.str("SYSTEM_LOGGING_FORMAT", &cfg.System.Logging.Format)
}
