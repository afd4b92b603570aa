package database

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createMailSQL = "CREATE TABLE IF NOT EXISTS mail (email VARCHAR(50) NOT NULL);"

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"resources/migrations/000001_create_person.up.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS person (email VARCHAR(50) NOT NULL);")},
		"resources/migrations/000001_create_person.down.sql": {Data: []byte("DROP TABLE person;")},
		"resources/migrations/000002_create_mail.up.sql":     {Data: []byte(createMailSQL)},
		"resources/migrations/000002_create_mail.down.sql":   {Data: []byte("DROP TABLE mail;")},
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// expectPostgresDriver はドライバ生成時に発行されるクエリを登録します。
func expectPostgresDriver(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT CURRENT_DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"current_database"}).AddRow("app"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT CURRENT_SCHEMA()")).
		WillReturnRows(sqlmock.NewRows([]string{"current_schema"}).AddRow("public"))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM information_schema.tables")).
		WithArgs("public", MigrationsTable).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).WillReturnResult(sqlmock.NewResult(0, 0))
}

const versionQuery = `SELECT version, dirty FROM "public"."app_schema_migrations" LIMIT 1`

func expectSetVersion(mock sqlmock.Sqlmock, version int, dirty bool) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE "public"."app_schema_migrations"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "public"."app_schema_migrations" (version, dirty) VALUES ($1, $2)`)).
		WithArgs(version, dirty).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestSupportsMigrations(t *testing.T) {
	assert.True(t, SupportsMigrations("postgres"))
	assert.True(t, SupportsMigrations("REDSHIFT"))
	assert.True(t, SupportsMigrations("mysql"))
	assert.False(t, SupportsMigrations("snowflake"))
	assert.False(t, SupportsMigrations("memory"))
}

func TestMigrationSourceString(t *testing.T) {
	assert.Equal(t, "file://./migrations", MigrationSource{Path: "./migrations"}.String())
	assert.Equal(t, "embed://resources/migrations", MigrationSource{FS: fstest.MapFS{}, Dir: "resources/migrations"}.String())
}

func TestRunMigrationsRejectsUnsupportedType(t *testing.T) {
	err := RunMigrations(context.Background(), &sqlx.DB{}, "snowflake", MigrationSource{Path: "x"}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "サポートされていないデータベースタイプ")
}

func TestRunMigrationsUpToDateKeepsStoreOpen(t *testing.T) {
	db, mock := newMockDB(t)
	expectPostgresDriver(mock)
	mock.ExpectQuery(regexp.QuoteMeta(versionQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(2, false))

	src := MigrationSource{FS: migrationFS(), Dir: "resources/migrations"}
	require.NoError(t, RunMigrations(context.Background(), db, "postgres", src, false))

	assert.NoError(t, db.Ping(), "マイグレーション後もレコードストアは利用できる")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsAppliesPendingSeed(t *testing.T) {
	db, mock := newMockDB(t)
	expectPostgresDriver(mock)
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_lock($1)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(versionQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"version", "dirty"}).AddRow(1, false))
	expectSetVersion(mock, 2, true)
	mock.ExpectExec(regexp.QuoteMeta(createMailSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectSetVersion(mock, 2, false)
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).WillReturnResult(sqlmock.NewResult(0, 0))

	src := MigrationSource{FS: migrationFS(), Dir: "resources/migrations"}
	require.NoError(t, RunMigrations(context.Background(), db, "postgres", src, true))

	assert.NoError(t, db.Ping())
	var one int
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
	assert.NoError(t, mock.ExpectationsWereMet())
}
