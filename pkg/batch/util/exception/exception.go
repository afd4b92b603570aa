package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind はバッチエラーの種別です。errors.Is で判定できるセンチネルとして使います。
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

var (
	// ErrStoreUnavailable はレコードストアに到達できないことを表します。
	ErrStoreUnavailable = &Kind{name: "store unavailable"}
	// ErrRead は次のレコードの読み込みに失敗したことを表します。
	ErrRead = &Kind{name: "read error"}
	// ErrWrite はチャンクの処理・書き込みに失敗したことを表します。
	ErrWrite = &Kind{name: "write error"}
	// ErrLaunchRejected はジョブ起動要求を受け付けられなかったことを表します。
	ErrLaunchRejected = &Kind{name: "launch rejected"}
)

// BatchError はバッチ処理中に発生するカスタムエラー型です。
// エラーの発生元モジュール、メッセージ、ラップされた元のエラー、
// そしてリトライ可能か、スキップ可能かのフラグを保持します。
type BatchError struct {
	Module      string // エラーが発生したモジュール (例: "reader", "writer", "job_launcher")
	Message     string
	OriginalErr error
	Kind        *Kind // nil の場合は種別なし
	isRetryable bool
	isSkippable bool
	StackTrace  string // デバッグ用
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError は新しい BatchError のインスタンスを作成します。
func NewBatchError(module, message string, originalErr error, isRetryable, isSkippable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewKindError は種別付きの BatchError を作成します。
func NewKindError(kind *Kind, module, message string, originalErr error) *BatchError {
	be := NewBatchError(module, message, originalErr, false, false)
	be.Kind = kind
	return be
}

// AsRetryable はエラーをリトライ可能としてマークします。
func (e *BatchError) AsRetryable() *BatchError {
	e.isRetryable = true
	return e
}

// NewBatchErrorf はフォーマット文字列を使用して新しい BatchError のインスタンスを作成します。
// 引数のうち最後の error 型の値は OriginalErr として扱い、メッセージには含めません。
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	args := make([]interface{}, 0, len(a))
	for i, v := range a {
		if err, ok := v.(error); ok && i == len(a)-1 {
			originalErr = err
			continue
		}
		args = append(args, v)
	}
	return NewBatchError(module, fmt.Sprintf(format, args...), originalErr, false, false)
}

// Error は error インターフェースの実装です。
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap は errors.Unwrap のために元のエラーを返します。
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// Is は target が自身の種別と一致するかを判定します。
func (e *BatchError) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && e.Kind != nil && e.Kind == k
}

// IsRetryable はこのエラーがリトライ可能かどうかを返します。
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable はこのエラーがスキップ可能かどうかを返します。
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// KindOf はエラーチェーン中で最も外側の種別を返します。見つからなければ nil です。
func KindOf(err error) *Kind {
	for err != nil {
		if be, ok := err.(*BatchError); ok && be.Kind != nil {
			return be.Kind
		}
		err = errors.Unwrap(err)
	}
	return nil
}

// IsTemporary は一時的なエラーかどうかを判定します。
// 例えば、ネットワークエラーや一時的なDB接続エラーなど。
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) && be.IsRetryable() {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused")
}
