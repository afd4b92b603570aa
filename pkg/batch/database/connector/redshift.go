package connector

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Redshift は PostgreSQL と互換性があるため、pq ドライバを使用

	"cronjob/pkg/batch/config"
)

// redshiftConnector は Redshift への接続を確立する DBConnector の実装です。
type redshiftConnector struct{}

// Connect は Redshift への接続を確立します。
func (c *redshiftConnector) Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return openAndPing(ctx, "postgres", "Redshift", cfg)
}

func init() {
	RegisterConnector("redshift", &redshiftConnector{})
}
