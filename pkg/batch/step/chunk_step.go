package step

import (
	"context"
	"errors"
	"fmt"
	"io"

	core "cronjob/pkg/batch/job/core"
	exception "cronjob/pkg/batch/util/exception"
	logger "cronjob/pkg/batch/util/logger"
)

// ChunkStep はチャンク指向のステップを実装します。
// Reader からアイテムを最大 chunkSize 件読み込み、Processor で変換し、Writer にまとめて渡します。
// 読み込み・処理・書き込みのいずれかが失敗した時点でステップは失敗し、未書き込みのチャンクは破棄されます。
type ChunkStep[I, O any] struct {
	name      string
	reader    core.ItemReader[I]
	processor core.ItemProcessor[I, O]
	writer    core.ItemWriter[O]
	chunkSize int

	stepListeners        []core.StepExecutionListener
	chunkListeners       []core.ChunkListener
	itemReadListeners    []core.ItemReadListener
	itemProcessListeners []core.ItemProcessListener
	itemWriteListeners   []core.ItemWriteListener
}

// NewChunkStep は新しい ChunkStep のインスタンスを作成します。
func NewChunkStep[I, O any](name string, r core.ItemReader[I], p core.ItemProcessor[I, O], w core.ItemWriter[O], chunkSize int) (*ChunkStep[I, O], error) {
	if chunkSize <= 0 {
		return nil, exception.NewBatchErrorf("chunk_step", "ステップ '%s' のチャンクサイズは正の整数である必要があります: %d", name, chunkSize)
	}
	if r == nil || p == nil || w == nil {
		return nil, exception.NewBatchErrorf("chunk_step", "ステップ '%s' には Reader, Processor, Writer が必要です", name)
	}
	return &ChunkStep[I, O]{
		name:      name,
		reader:    r,
		processor: p,
		writer:    w,
		chunkSize: chunkSize,
	}, nil
}

// StepName はステップの名前を返します。
func (cs *ChunkStep[I, O]) StepName() string {
	return cs.name
}

// ChunkSize はチャンクサイズを返します。
func (cs *ChunkStep[I, O]) ChunkSize() int {
	return cs.chunkSize
}

func (cs *ChunkStep[I, O]) RegisterStepListener(l core.StepExecutionListener) {
	cs.stepListeners = append(cs.stepListeners, l)
}

func (cs *ChunkStep[I, O]) RegisterChunkListener(l core.ChunkListener) {
	cs.chunkListeners = append(cs.chunkListeners, l)
}

func (cs *ChunkStep[I, O]) RegisterItemReadListener(l core.ItemReadListener) {
	cs.itemReadListeners = append(cs.itemReadListeners, l)
}

func (cs *ChunkStep[I, O]) RegisterItemProcessListener(l core.ItemProcessListener) {
	cs.itemProcessListeners = append(cs.itemProcessListeners, l)
}

func (cs *ChunkStep[I, O]) RegisterItemWriteListener(l core.ItemWriteListener) {
	cs.itemWriteListeners = append(cs.itemWriteListeners, l)
}

// Execute はチャンクステップを実行し、結果を stepExecution に記録します。
func (cs *ChunkStep[I, O]) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) error {
	for _, l := range cs.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
	stepExecution.MarkAsStarted()

	err := cs.run(ctx, stepExecution)
	if err != nil {
		stepExecution.MarkAsFailed(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			stepExecution.ExitStatus = core.ExitStatusStopped
		}
		for _, l := range cs.chunkListeners {
			l.OnChunkError(ctx, stepExecution, err)
		}
	} else {
		stepExecution.MarkAsCompleted()
	}

	for _, l := range cs.stepListeners {
		l.AfterStep(ctx, stepExecution)
	}
	return err
}

func (cs *ChunkStep[I, O]) run(ctx context.Context, se *core.StepExecution) error {
	if err := cs.reader.Open(ctx, se.ExecutionContext); err != nil {
		return withKind(err, exception.ErrStoreUnavailable, "Reader のオープンに失敗しました")
	}
	defer func() {
		if closeErr := cs.reader.Close(ctx); closeErr != nil {
			logger.Warnf("ステップ '%s' の Reader のクローズに失敗しました: %v", cs.name, closeErr)
		}
	}()

	if err := cs.writer.Open(ctx, se.ExecutionContext); err != nil {
		return withKind(err, exception.ErrWrite, "Writer のオープンに失敗しました")
	}
	defer func() {
		if closeErr := cs.writer.Close(ctx); closeErr != nil {
			logger.Warnf("ステップ '%s' の Writer のクローズに失敗しました: %v", cs.name, closeErr)
		}
	}()

	for {
		done, err := cs.processChunk(ctx, se)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// processChunk は一つのチャンクを読み込み、空でなければ書き込みます。Reader が終端に達した場合は true を返します。
func (cs *ChunkStep[I, O]) processChunk(ctx context.Context, se *core.StepExecution) (bool, error) {
	chunk := make([]O, 0, cs.chunkSize)
	eof := false

	for len(chunk) < cs.chunkSize {
		if err := ctx.Err(); err != nil {
			logger.Warnf("ステップ '%s' がコンテキストキャンセルにより停止されました: %v", cs.name, err)
			return false, err
		}

		item, err := cs.reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			eof = true
			break
		}
		if err != nil {
			for _, l := range cs.itemReadListeners {
				l.OnReadError(ctx, err)
			}
			return false, withKind(err, exception.ErrRead, "アイテムの読み込みに失敗しました")
		}
		if len(chunk) == 0 {
			for _, l := range cs.chunkListeners {
				l.BeforeChunk(ctx, se)
			}
		}
		se.ReadCount++

		out, err := cs.processor.Process(ctx, item)
		if err != nil {
			for _, l := range cs.itemProcessListeners {
				l.OnProcessError(ctx, item, err)
			}
			return false, withKind(err, exception.ErrWrite, "アイテムの処理に失敗しました")
		}
		chunk = append(chunk, out)
	}

	if len(chunk) == 0 {
		return eof, nil
	}

	if err := cs.writer.Write(ctx, chunk); err != nil {
		if len(cs.itemWriteListeners) > 0 {
			items := make([]interface{}, len(chunk))
			for i, v := range chunk {
				items[i] = v
			}
			for _, l := range cs.itemWriteListeners {
				l.OnWriteError(ctx, items, err)
			}
		}
		return false, withKind(err, exception.ErrWrite, fmt.Sprintf("チャンク (%d 件) の書き込みに失敗しました", len(chunk)))
	}
	se.WriteCount += len(chunk)
	se.CommitCount++
	for _, l := range cs.chunkListeners {
		l.AfterChunk(ctx, se, len(chunk))
	}
	return eof, nil
}

// withKind は種別を持たないエラーに kind を付与します。既に種別を持つエラーはそのまま返します。
func withKind(err error, kind *exception.Kind, message string) error {
	if exception.KindOf(err) != nil {
		return err
	}
	return exception.NewKindError(kind, "chunk_step", message, err)
}

var _ core.Step = (*ChunkStep[string, string])(nil)
