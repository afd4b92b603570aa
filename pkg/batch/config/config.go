package config

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/snowflakedb/gosnowflake"

	exception "cronjob/pkg/batch/util/exception"
)

// EmbeddedConfig は main.go から渡される埋め込み設定ファイルの内容です。
type EmbeddedConfig []byte

// ConnectionPoolConfig はデータベースコネクションプールの設定を保持します。
type ConnectionPoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds"`
}

// DatabaseConfig はレコードストアの接続設定です。
type DatabaseConfig struct {
	Type     string `yaml:"type"` // postgres, redshift, mysql, snowflake, memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Sslmode  string `yaml:"sslmode"`
	// Snowflake 用
	Account   string `yaml:"account"`
	Warehouse string `yaml:"warehouse"`
	Schema    string `yaml:"schema"`
	// 外部のマイグレーションファイルのパス。空の場合は埋め込みスクリプトを使用します。
	AppMigrationPath string `yaml:"app_migration_path"`
	// false の場合、シードデータのマイグレーションを適用しません。
	Seed           bool                 `yaml:"seed"`
	ConnectRetries int                  `yaml:"connect_retries"`
	ConnectDelayMs int                  `yaml:"connect_delay_ms"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

// ConnectionString はデータベースタイプに応じた接続文字列を返します。
func (c DatabaseConfig) ConnectionString() string {
	switch strings.ToLower(c.Type) {
	case "postgres", "redshift":
		// golang-migrate/migrate が期待する形式に合わせる
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, c.Sslmode)
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.Database
		mc.MultiStatements = true // マイグレーションスクリプトに複数文を含めるため
		return mc.FormatDSN()
	case "snowflake":
		dsn, err := gosnowflake.DSN(&gosnowflake.Config{
			Account:   c.Account,
			User:      c.User,
			Password:  c.Password,
			Database:  c.Database,
			Schema:    c.Schema,
			Warehouse: c.Warehouse,
		})
		if err != nil {
			return ""
		}
		return dsn
	default:
		return ""
	}
}

// ScheduleConfig はトリガーの発火設定です。
type ScheduleConfig struct {
	InitialDelayMs int64  `yaml:"initial_delay_ms"`
	FixedRateMs    int64  `yaml:"fixed_rate_ms"`
	Cron           string `yaml:"cron"`           // 設定された場合は固定間隔より優先 (例: "@every 5s")
	OverrunPolicy  string `yaml:"overrun_policy"` // queue または skip
	QueueCapacity  int    `yaml:"queue_capacity"` // queue の待ち件数の上限。0 は無制限
}

// AMQPConfig は AMQP ライターの接続設定です。
type AMQPConfig struct {
	URL          string `yaml:"url"`
	Exchange     string `yaml:"exchange"`
	ExchangeType string `yaml:"exchange_type"`
	RoutingKey   string `yaml:"routing_key"`
	Queue        string `yaml:"queue"`
}

// WriterConfig はチャンクライターの設定です。
type WriterConfig struct {
	Type string     `yaml:"type"` // log または amqp
	AMQP AMQPConfig `yaml:"amqp"`
}

// BatchConfig はジョブとトリガーの設定です。
type BatchConfig struct {
	JobName      string         `yaml:"job_name"`
	ChunkSize    int            `yaml:"chunk_size"`
	Query        string         `yaml:"query"`
	HistoryLimit int            `yaml:"history_limit"`
	Schedule     ScheduleConfig `yaml:"schedule"`
	Writer       WriterConfig   `yaml:"writer"`
}

// LoggingConfig はロギング設定です。
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	NoColor bool   `yaml:"no_color"`
}

type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

type Config struct {
	Database       DatabaseConfig `yaml:"database"`
	Batch          BatchConfig    `yaml:"batch"`
	System         SystemConfig   `yaml:"system"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

const (
	OverrunPolicyQueue = "queue"
	OverrunPolicySkip  = "skip"

	WriterTypeLog  = "log"
	WriterTypeAMQP = "amqp"
)

// NewConfig はデフォルト値を設定した Config を返します。
func NewConfig() *Config {
	return &Config{
		System: SystemConfig{
			Timezone: "UTC",
			Logging:  LoggingConfig{Level: "INFO", Format: "console"},
		},
		Batch: BatchConfig{
			JobName:      "mailerJob",
			ChunkSize:    2,
			Query:        "select first_name, last_name, email from person",
			HistoryLimit: 100,
			Schedule: ScheduleConfig{
				InitialDelayMs: 2000,
				FixedRateMs:    5000,
				OverrunPolicy:  OverrunPolicyQueue,
				QueueCapacity:  0,
			},
			Writer: WriterConfig{
				Type: WriterTypeLog,
				AMQP: AMQPConfig{ExchangeType: "direct"},
			},
		},
		Database: DatabaseConfig{
			Type:           "memory",
			Seed:           true,
			ConnectRetries: 10,
			ConnectDelayMs: 5000,
		},
	}
}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	const module = "config"
	if c.Batch.JobName == "" {
		return exception.NewBatchErrorf(module, "batch.job_name が指定されていません")
	}
	if c.Batch.ChunkSize <= 0 {
		return exception.NewBatchErrorf(module, "batch.chunk_size は正の整数である必要があります: %d", c.Batch.ChunkSize)
	}
	s := c.Batch.Schedule
	if s.Cron == "" && s.FixedRateMs <= 0 {
		return exception.NewBatchErrorf(module, "batch.schedule.fixed_rate_ms は正の整数である必要があります: %d", s.FixedRateMs)
	}
	if s.InitialDelayMs < 0 {
		return exception.NewBatchErrorf(module, "batch.schedule.initial_delay_ms は 0 以上である必要があります: %d", s.InitialDelayMs)
	}
	switch s.OverrunPolicy {
	case OverrunPolicyQueue:
		if s.QueueCapacity < 0 {
			return exception.NewBatchErrorf(module, "batch.schedule.queue_capacity は 0 以上である必要があります: %d", s.QueueCapacity)
		}
	case OverrunPolicySkip:
	default:
		return exception.NewBatchErrorf(module, "未対応の overrun_policy です: %s", s.OverrunPolicy)
	}
	switch c.Batch.Writer.Type {
	case WriterTypeLog:
	case WriterTypeAMQP:
		if c.Batch.Writer.AMQP.URL == "" {
			return exception.NewBatchErrorf(module, "batch.writer.amqp.url が指定されていません")
		}
	default:
		return exception.NewBatchErrorf(module, "未対応の writer.type です: %s", c.Batch.Writer.Type)
	}
	switch strings.ToLower(c.Database.Type) {
	case "memory", "postgres", "redshift", "mysql", "snowflake":
	default:
		return exception.NewBatchErrorf(module, "未対応のデータベースタイプです: %s", c.Database.Type)
	}
	return nil
}
