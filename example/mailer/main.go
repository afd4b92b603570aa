package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	"cronjob/example/mailer/app"
	"cronjob/pkg/batch/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed resources/migrations/*.sql
var embeddedMigrations embed.FS

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング (Ctrl+C などで安全に終了するため)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("シグナル '%v' を受信しました。スケジューラを停止します...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	exitCode := app.RunApplication(ctx, envFilePath, embeddedConfig, embeddedMigrations, os.Stdin, os.Stdout)
	os.Exit(exitCode)
}
