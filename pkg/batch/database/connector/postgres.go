package connector

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL ドライバ

	"cronjob/pkg/batch/config"
)

// postgresConnector は PostgreSQL データベースへの接続を確立する DBConnector の実装です。
type postgresConnector struct{}

// Connect は PostgreSQL データベースへの接続を確立します。
func (c *postgresConnector) Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return openAndPing(ctx, "postgres", "PostgreSQL", cfg)
}

func init() {
	RegisterConnector("postgres", &postgresConnector{})
}
