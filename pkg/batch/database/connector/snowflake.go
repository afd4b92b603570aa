package connector

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/snowflakedb/gosnowflake" // Snowflake ドライバ

	"cronjob/pkg/batch/config"
)

// snowflakeConnector は Snowflake への接続を確立する DBConnector の実装です。
// Snowflake のスキーマは外部で管理される前提のため、マイグレーションは適用しません。
type snowflakeConnector struct{}

// Connect は Snowflake への接続を確立します。
func (c *snowflakeConnector) Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return openAndPing(ctx, "snowflake", "Snowflake", cfg)
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
