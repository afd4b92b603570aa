package connector

import (
	"context"

	_ "github.com/go-sql-driver/mysql" // MySQL ドライバ
	"github.com/jmoiron/sqlx"

	"cronjob/pkg/batch/config"
)

// mysqlConnector は MySQL データベースへの接続を確立する DBConnector の実装です。
type mysqlConnector struct{}

// Connect は MySQL データベースへの接続を確立します。
func (c *mysqlConnector) Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return openAndPing(ctx, "mysql", "MySQL", cfg)
}

func init() {
	RegisterConnector("mysql", &mysqlConnector{})
}
