package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/server"
	"github.com/spf13/viper"
)

func main() {
	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New(viper.New())
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, closer := logger.New(logger.Options{
		Level: level,
		JSON:  cfg.Env == config.Production,
		File:  cfg.LogFile,
	})
	defer func() {
		if err := closer.Close(); err != nil {
			fmt.Println("Error: close log file:", err.Error())
		}
	}()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg, log)
}
