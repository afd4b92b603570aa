package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	logger "cronjob/pkg/batch/util/logger"
)

const (
	// QuitCommand は終了を要求するコンソール入力です。
	QuitCommand = "q"
	// Prompt は起動時にコンソールへ表示する案内です。
	Prompt = "Please enter q and press <enter> to exit the program: "
)

// WaitForQuit は in から一行ずつ読み込み、前後の空白を除いた入力が q であれば quit を呼んで true を返します。
// それ以外の入力は無視します。in が EOF に達した場合と ctx が終了した場合は quit を呼ばずに false を返します。
func WaitForQuit(ctx context.Context, in io.Reader, out io.Writer, quit context.CancelFunc) bool {
	if out != nil {
		fmt.Fprint(out, Prompt)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warnf("コンソール入力の読み込みに失敗しました: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				logger.Infof("コンソール入力が閉じられました。シグナルによる終了を待ちます。")
				return false
			}
			if strings.TrimSpace(line) == QuitCommand {
				logger.Infof("終了要求を受け付けました。スケジューラを停止します。")
				quit()
				return true
			}
		}
	}
}
