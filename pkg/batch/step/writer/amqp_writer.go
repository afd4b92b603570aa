package writer

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"cronjob/pkg/batch/config"
	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
	serialization "cronjob/pkg/batch/util/serialization"
)

// Publisher は AMQP へメッセージを発行するためのインターフェースです。
// トランザクションモードにした *amqp.Channel が満たします。
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	TxCommit() error
	TxRollback() error
}

// AMQPItemWriter はアイテムごとに JSON メッセージを一件ずつ発行する ItemWriter です。
// 一つのチャンクは一つのチャネルトランザクションとして確定します。
type AMQPItemWriter[T any] struct {
	publisher  Publisher
	exchange   string
	routingKey string
	closer     func() error
}

// NewAMQPItemWriter は既存の Publisher を使う AMQPItemWriter を作成します。
func NewAMQPItemWriter[T any](publisher Publisher, exchange, routingKey string) *AMQPItemWriter[T] {
	return &AMQPItemWriter[T]{publisher: publisher, exchange: exchange, routingKey: routingKey}
}

// DialAMQPItemWriter はブローカーに接続し、exchange と queue を宣言した AMQPItemWriter を作成します。
// 接続は Shutdown で解放されます。
func DialAMQPItemWriter[T any](cfg config.AMQPConfig) (*AMQPItemWriter[T], error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, exception.NewKindError(exception.ErrWrite, "writer", "AMQP ブローカーへの接続に失敗しました", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, exception.NewKindError(exception.ErrWrite, "writer", "AMQP チャネルの作成に失敗しました", err)
	}
	if err := declare(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, exception.NewKindError(exception.ErrWrite, "writer", "exchange と queue の宣言に失敗しました", err)
	}
	if err := ch.Tx(); err != nil {
		ch.Close()
		conn.Close()
		return nil, exception.NewKindError(exception.ErrWrite, "writer", "AMQP チャネルをトランザクションモードにできませんでした", err)
	}

	w := NewAMQPItemWriter[T](ch, cfg.Exchange, cfg.RoutingKey)
	w.closer = func() error {
		if err := ch.Close(); err != nil {
			logger.Warnf("AMQP チャネルのクローズに失敗しました: %v", err)
		}
		return conn.Close()
	}
	logger.Infof("AMQP ライターを初期化しました。exchange: '%s', routing_key: '%s'", cfg.Exchange, cfg.RoutingKey)
	return w, nil
}

func declare(ch *amqp.Channel, cfg config.AMQPConfig) error {
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
			return fmt.Errorf("exchange '%s': %w", cfg.Exchange, err)
		}
	}
	if cfg.Queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue '%s': %w", cfg.Queue, err)
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind '%s': %w", cfg.Queue, err)
		}
	}
	return nil
}

func (w *AMQPItemWriter[T]) Open(ctx context.Context, ec core.ExecutionContext) error {
	return nil
}

// Write はアイテムをチャンク内の順序どおりに発行し、最後にまとめてコミットします。
// 途中で失敗した場合はロールバックし、チャンクのメッセージは一件も配送されません。
func (w *AMQPItemWriter[T]) Write(ctx context.Context, items []T) error {
	for i, item := range items {
		body, err := serialization.MarshalItem(item)
		if err != nil {
			w.rollback()
			return exception.NewKindError(exception.ErrWrite, "writer", fmt.Sprintf("アイテム %d のエンコードに失敗しました", i), err)
		}
		err = w.publisher.PublishWithContext(ctx, w.exchange, w.routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
		if err != nil {
			w.rollback()
			return exception.NewKindError(exception.ErrWrite, "writer", fmt.Sprintf("アイテム %d の発行に失敗しました", i), err)
		}
	}
	if err := w.publisher.TxCommit(); err != nil {
		return exception.NewKindError(exception.ErrWrite, "writer", "チャンクのコミットに失敗しました", err)
	}
	for _, item := range items {
		logger.Infof("Writing %v", item)
	}
	return nil
}

func (w *AMQPItemWriter[T]) rollback() {
	if err := w.publisher.TxRollback(); err != nil {
		logger.Warnf("AMQP トランザクションのロールバックに失敗しました: %v", err)
	}
}

// Close はステップ実行の終了時に呼ばれます。接続は複数の実行で共有するため閉じません。
func (w *AMQPItemWriter[T]) Close(ctx context.Context) error {
	return nil
}

// Shutdown は DialAMQPItemWriter で確立した接続を閉じます。
func (w *AMQPItemWriter[T]) Shutdown() error {
	if w.closer == nil {
		return nil
	}
	closer := w.closer
	w.closer = nil
	return closer()
}

var _ core.ItemWriter[string] = (*AMQPItemWriter[string])(nil)
