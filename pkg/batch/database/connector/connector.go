package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"cronjob/pkg/batch/config"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// DBConnector は特定のデータベースタイプへの接続を確立するためのインターフェースです。
type DBConnector interface {
	Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error)
}

var (
	mu         sync.RWMutex
	connectors = make(map[string]DBConnector)
)

// RegisterConnector は指定されたタイプ名で DBConnector を登録します。同名の登録は上書きします。
// タイプ名は大文字小文字を区別しません。
func RegisterConnector(dbType string, connector DBConnector) {
	dbType = normalizeType(dbType)
	mu.Lock()
	defer mu.Unlock()
	if _, exists := connectors[dbType]; exists {
		logger.Warnf("DBConnector '%s' は既に登録されています。上書きします。", dbType)
	}
	connectors[dbType] = connector
}

// Registered は登録済みのデータベースタイプを返します。
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(connectors))
	for t := range connectors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Connect は設定に基づいて登録済みのコネクタを選択し、データベースに接続します。
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	mu.RLock()
	c, ok := connectors[normalizeType(cfg.Type)]
	mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchError("database", fmt.Sprintf("未対応のデータベースタイプ: %s", cfg.Type), nil, false, false)
	}
	return c.Connect(ctx, cfg)
}

func normalizeType(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// ConnectWithRetry は一時的なエラーの場合に限り、接続をリトライします。
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	delay := time.Duration(cfg.ConnectDelayMs) * time.Millisecond

	var lastErr error
	for i := 0; i < retries; i++ {
		logger.Debugf("データベース接続を試行中 (試行 %d/%d)...", i+1, retries)
		db, err := Connect(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if !exception.IsTemporary(err) {
			break
		}
		logger.Warnf("データベース接続に失敗しました: %v", err)
		if i == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, exception.NewKindError(exception.ErrStoreUnavailable, "database", "データベース接続が中断されました", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, exception.NewKindError(exception.ErrStoreUnavailable, "database",
		fmt.Sprintf("データベースへの接続に失敗しました (最大試行回数: %d)", retries), lastErr)
}

// openAndPing は接続を開き、プール設定を適用して Ping で疎通を確認します。
func openAndPing(ctx context.Context, driverName, label string, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.ConnectionString()
	if dsn == "" {
		return nil, exception.NewBatchErrorf("database", "%s の接続文字列の構築に失敗しました", label)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, exception.NewBatchError("database", fmt.Sprintf("%s への接続に失敗しました", label), err, false, false)
	}

	pool := cfg.ConnectionPool
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, exception.NewKindError(exception.ErrStoreUnavailable, "database",
			fmt.Sprintf("%s への Ping に失敗しました", label), err).AsRetryable()
	}

	logger.Debugf("%s に正常に接続しました。MaxOpenConns: %d, MaxIdleConns: %d, ConnMaxLifetime: %d秒",
		label, pool.MaxOpenConns, pool.MaxIdleConns, pool.ConnMaxLifetimeSeconds)
	return db, nil
}
