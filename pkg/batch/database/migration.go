package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // ファイルソースドライバを登録
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// MigrationsTable はアプリケーションのマイグレーション履歴テーブル名です。
const MigrationsTable = "app_schema_migrations"

// SchemaVersion はスキーマ作成までのマイグレーションバージョンです。これより後はシードデータです。
const SchemaVersion uint = 1

// MigrationSource はマイグレーションスクリプトの取得元です。
// Path が指定された場合はファイルシステム上のディレクトリを、それ以外は FS 内の Dir を使用します。
type MigrationSource struct {
	Path string
	FS   fs.FS
	Dir  string
}

func (s MigrationSource) String() string {
	if s.Path != "" {
		return "file://" + s.Path
	}
	return "embed://" + s.Dir
}

// RunMigrations は既存の接続プールから専用コネクションを取り出し、マイグレーションを適用します。
// 終了時に閉じるのは専用コネクションのみで、db はそのまま利用できます。
// seed が false の場合は SchemaVersion までで止めます。
func RunMigrations(ctx context.Context, db *sqlx.DB, dbType string, src MigrationSource, seed bool) error {
	logger.Infof("データベースマイグレーションを開始します。DBタイプ: %s, マイグレーションパス: %s", dbType, src)

	driver, err := databaseDriver(ctx, db, dbType)
	if err != nil {
		return err
	}

	m, err := newMigrate(src, dbType, driver)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションインスタンスの作成に失敗しました", err, false, false)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("マイグレーションのクローズに失敗しました: source=%v, database=%v", srcErr, dbErr)
		}
	}()

	if seed {
		err = m.Up()
	} else {
		err = migrateSchemaOnly(m)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Infof("マイグレーションは不要です。データベースは最新の状態です。")
		return nil
	}
	if err != nil {
		return exception.NewKindError(exception.ErrStoreUnavailable, "migration", "マイグレーションの実行に失敗しました", err)
	}

	logger.Infof("データベースマイグレーションが正常に完了しました。")
	return nil
}

func migrateSchemaOnly(m *migrate.Migrate) error {
	v, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	if err == nil && v >= SchemaVersion {
		return migrate.ErrNoChange
	}
	return m.Migrate(SchemaVersion)
}

func databaseDriver(ctx context.Context, db *sqlx.DB, dbType string) (migratedb.Driver, error) {
	dbType = strings.ToLower(dbType)
	if !SupportsMigrations(dbType) {
		return nil, exception.NewBatchErrorf("migration", "サポートされていないデータベースタイプ: %s", dbType)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, exception.NewKindError(exception.ErrStoreUnavailable, "migration", "マイグレーション用コネクションの取得に失敗しました", err)
	}

	var driver migratedb.Driver
	switch dbType {
	case "postgres", "redshift":
		driver, err = migratepg.WithConnection(ctx, conn, &migratepg.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		driver, err = migratemysql.WithConnection(ctx, conn, &migratemysql.Config{MigrationsTable: MigrationsTable})
	}
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warnf("マイグレーション用コネクションのクローズに失敗しました: %v", closeErr)
		}
		return nil, exception.NewBatchError("migration", "マイグレーションドライバの作成に失敗しました", err, false, false)
	}
	return driver, nil
}

func newMigrate(src MigrationSource, dbType string, driver migratedb.Driver) (*migrate.Migrate, error) {
	if src.Path != "" {
		return migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", src.Path), dbType, driver)
	}
	if src.FS == nil {
		return nil, fmt.Errorf("マイグレーションソースが指定されていません")
	}
	d, err := iofs.New(src.FS, src.Dir)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", d, dbType, driver)
}

// SupportsMigrations はデータベースタイプがマイグレーションに対応しているかを返します。
func SupportsMigrations(dbType string) bool {
	switch strings.ToLower(dbType) {
	case "postgres", "redshift", "mysql":
		return true
	}
	return false
}
