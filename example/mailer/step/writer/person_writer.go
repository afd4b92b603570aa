package writer

import (
	entity "cronjob/example/mailer/domain/entity"
	config "cronjob/pkg/batch/config"
	core "cronjob/pkg/batch/job/core"
	batchwriter "cronjob/pkg/batch/step/writer"
	exception "cronjob/pkg/batch/util/exception"
)

// NewPersonWriter は batch.writer.type に応じた Person の ItemWriter を返します。
func NewPersonWriter(cfg *config.Config) (core.ItemWriter[entity.Person], error) {
	switch cfg.Batch.Writer.Type {
	case config.WriterTypeLog, "":
		return batchwriter.NewLoggingItemWriter[entity.Person](), nil
	case config.WriterTypeAMQP:
		w, err := batchwriter.DialAMQPItemWriter[entity.Person](cfg.Batch.Writer.AMQP)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, exception.NewBatchErrorf("person_writer", "未対応の writer.type です: %s", cfg.Batch.Writer.Type)
	}
}
