package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"teambot/internal/auth"
	"teambot/internal/bot"
	"teambot/internal/broadcast"
	"teambot/internal/config"
	"teambot/internal/gateway/telegram"
	"teambot/internal/storage"
	"teambot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	_ = godotenv.Load() // .env is optional; real env still wins

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log := logx.New(cfg.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: config.ParseDuration(cfg.Storage.BusyTimeout, 5*time.Second),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	defer store.Close()

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.ParseDuration(cfg.Telegram.PollTimeout, 10*time.Second),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return err
	}

	guard := auth.NewGuard(cfg.Admins.Roots, store, log.With(logx.String("comp", "auth")))
	engine := broadcast.New(adapter, store, cfg.Rate(), log.With(logx.String("comp", "broadcast")))
	b := bot.New(cfg, adapter, store, guard, engine, log.With(logx.String("comp", "bot")))

	if cfg.Digest.Enabled {
		stopDigest, err := b.StartDigest(cfg.Digest.Spec)
		if err != nil {
			return fmt.Errorf("digest schedule: %w", err)
		}
		defer stopDigest()
	}

	// Live reload of the tunable parts (resource links, broadcast pacing).
	go func() {
		if err := config.Watch(ctx, cfgPath, log.With(logx.String("comp", "config")), b.Apply); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if err := adapter.Start(ctx, b.Updates()); err != nil {
		return err
	}
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify skipped", logx.Err(err))
	}
	log.Info("bot up", logx.String("config", cfgPath))

	b.Run(ctx) // blocks until shutdown

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return adapter.Stop(stopCtx)
}
