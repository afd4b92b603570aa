package repository

import (
	"strings"

	"github.com/jmoiron/sqlx"

	entity "cronjob/example/mailer/domain/entity"
	config "cronjob/pkg/batch/config"
	core "cronjob/pkg/batch/job/core"
	reader "cronjob/pkg/batch/step/reader"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// SeedPersons は memory ストアが返す Person の一覧です。000002_seed_person と同じ内容です。
func SeedPersons() []entity.Person {
	return []entity.Person{
		entity.NewPerson("Jill", "Doe", "jill.doe@example.com"),
		entity.NewPerson("Joe", "Doe", "joe.doe@example.com"),
		entity.NewPerson("Justin", "Doe", "justin.doe@example.com"),
		entity.NewPerson("Jane", "Doe", "jane.doe@example.com"),
		entity.NewPerson("John", "Doe", "john.doe@example.com"),
	}
}

// NewPersonReader はデータベースタイプに応じた Person の ItemReader を返します。
// memory の場合はシードデータを、それ以外は db に対して batch.query を実行します。
func NewPersonReader(cfg *config.Config, db *sqlx.DB) (core.ItemReader[entity.Person], error) {
	dbType := strings.ToLower(cfg.Database.Type)
	if dbType == "memory" {
		logger.Debugf("memory ストアから Person を読み込みます。")
		return reader.NewListReader(SeedPersons()...), nil
	}
	if db == nil {
		return nil, exception.NewKindError(exception.ErrStoreUnavailable, "person_repository",
			"データベースタイプ '"+dbType+"' の接続が初期化されていません", nil)
	}
	logger.Debugf("%s ストアから Person を読み込みます。クエリ: %s", dbType, cfg.Batch.Query)
	return reader.NewSQLCursorReader[entity.Person](db, cfg.Batch.Query), nil
}
