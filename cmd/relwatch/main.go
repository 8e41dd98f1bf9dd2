package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relwatch/internal/config"
	"relwatch/internal/github"
	"relwatch/internal/monitor"
	"relwatch/internal/state"
	"relwatch/internal/summary"
	"relwatch/internal/telegram"
	"relwatch/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

// run performs one monitoring pass. Per-repository failures are handled
// inside the monitor; an error here means the run could not start or
// could not commit its state.
func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closer := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
	})
	defer closer.Close()

	sendTimeout, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, 20*time.Second)
	if err != nil {
		return err
	}
	ghTimeout, err := config.ParseDurationOrDefault("github.request_timeout", cfg.GitHub.RequestTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	sumTimeout, err := config.ParseDurationOrDefault("summary.request_timeout", cfg.Summary.RequestTimeout, 30*time.Second)
	if err != nil {
		return err
	}

	st, err := state.Open(cfg.State.Path, log.With(logx.String("comp", "state")))
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}

	sender, err := telegram.New(telegram.Options{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		SendTimeout: sendTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}

	gh := github.New(ctx, cfg.GitHub.Token, ghTimeout, log.With(logx.String("comp", "github")))

	sum := summary.New(summary.Options{
		APIKey:   cfg.Summary.APIKey,
		BaseURL:  cfg.Summary.BaseURL,
		Model:    cfg.Summary.Model,
		Language: cfg.Summary.Language,
		Timeout:  sumTimeout,
	}, log.With(logx.String("comp", "summary")))

	m := monitor.New(cfg.Repos, gh, sum, sender, st, log.With(logx.String("comp", "monitor")))
	if _, err := m.Run(ctx); err != nil {
		return err
	}
	return nil
}
