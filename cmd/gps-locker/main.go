package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"gps-locker/internal/config"
	"gps-locker/internal/logger"
	"gps-locker/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./gps-locker.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logs := web.NewLogBuffer(cfg.Log.BufferLines)
	lg := logger.NewLogger(level, io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newLockerRuntime(ctx, cfg, lg, logs, clockwork.NewRealClock())
	if err != nil {
		lg.Error("startup failed", logger.Err(err))
		os.Exit(1)
	}
	defer rt.Close()

	lg.Info("gps-locker starting", "config", configPath)
	if err := rt.run(ctx); err != nil {
		lg.Error("locker stopped", logger.Err(err))
	}
	lg.Info("gps-locker stopping")
}
