package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel はログのレベルを表す型です。
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Options はロガーの出力形式を指定します。
type Options struct {
	Level   string    // DEBUG, INFO, WARN, ERROR, FATAL
	Format  string    // console (tint) または json
	NoColor bool      // console 出力時に色を付けない
	Output  io.Writer // nil の場合は os.Stderr
}

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	current  = newLogger(Options{})
	exitFunc = os.Exit
)

// slog にはない FATAL 用のレベル
const slogLevelFatal = slog.LevelError + 4

func newLogger(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      levelVar,
			TimeFormat: time.DateTime,
			NoColor:    opts.NoColor,
		})
	}
	return slog.New(handler)
}

// Configure はロガーのハンドラとレベルを差し替えます。
func Configure(opts Options) {
	mu.Lock()
	current = newLogger(opts)
	mu.Unlock()
	if opts.Level != "" {
		SetLogLevel(opts.Level)
	}
}

// SetOutput は出力先を差し替えます。主にテスト用で、色は付けません。
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	current = newLogger(Options{Output: w, NoColor: true})
}

// SetLogLevel はログレベルを設定します。
func SetLogLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		levelVar.Set(slog.LevelDebug)
	case "INFO":
		levelVar.Set(slog.LevelInfo)
	case "WARN", "WARNING":
		levelVar.Set(slog.LevelWarn)
	case "ERROR":
		levelVar.Set(slog.LevelError)
	case "FATAL":
		levelVar.Set(slogLevelFatal)
	default:
		levelVar.Set(slog.LevelInfo)
		Warnf("不明なログレベル '%s' が指定されました。INFO レベルで続行します。", level)
	}
}

// Level は現在のログレベルを返します。
func Level() LogLevel {
	switch l := levelVar.Level(); {
	case l <= slog.LevelDebug:
		return LevelDebug
	case l <= slog.LevelInfo:
		return LevelInfo
	case l <= slog.LevelWarn:
		return LevelWarn
	case l <= slog.LevelError:
		return LevelError
	default:
		return LevelFatal
	}
}

func logf(level slog.Level, format string, v ...interface{}) {
	mu.RLock()
	l := current
	mu.RUnlock()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, fmt.Sprintf(format, v...))
}

// Debugf は DEBUG レベルのログを出力します。
func Debugf(format string, v ...interface{}) {
	logf(slog.LevelDebug, format, v...)
}

// Infof は INFO レベルのログを出力します。
func Infof(format string, v ...interface{}) {
	logf(slog.LevelInfo, format, v...)
}

// Warnf は WARN レベルのログを出力します。
func Warnf(format string, v ...interface{}) {
	logf(slog.LevelWarn, format, v...)
}

// Errorf は ERROR レベルのログを出力します。
func Errorf(format string, v ...interface{}) {
	logf(slog.LevelError, format, v...)
}

// Fatalf は FATAL レベルのログを出力し、プログラムを終了します。
func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	l := current
	mu.RUnlock()
	l.Log(context.Background(), slogLevelFatal, fmt.Sprintf(format, v...))
	exitFunc(1)
}
