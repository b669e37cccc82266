package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"papertrade/internal/app"
	"papertrade/internal/config"
	"papertrade/internal/logger"
)

func main() {
	flagPath := flag.String("config", "", "path to config file (overrides "+config.EnvConfigPath+")")
	flag.Parse()

	cfgPath := strings.TrimSpace(*flagPath)
	if cfgPath == "" {
		cfgPath = config.PathFromEnv(config.DefaultConfigPath)
	}

	watcher, err := config.Watch(cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	cfg := watcher.Snapshot().Config

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("open log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.Infof("config loaded (env=%s, path=%s)", cfg.App.Env, cfgPath)

	a, err := app.NewApp(&cfg)
	if err != nil {
		log.Fatalf("init app failed: %v", err)
	}
	a.Follow(watcher)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
