package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tokenkit/pkg/logger"
)

// main 是 tokenctl 命令行工具的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.L().Error("tokenctl 运行失败", slog.Any("error", err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}
