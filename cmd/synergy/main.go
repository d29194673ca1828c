package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"synergysphere/internal/app"
	"synergysphere/internal/client"
	"synergysphere/internal/config"
	"synergysphere/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatal(err)
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logCfg.Encoding = "console"
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cli, err := client.New(cfg.BaseURL, cfg.AnonKey)
	if err != nil {
		log.Fatal(err)
	}

	provider := session.NewProvider(logger, cli, session.NewFileStore(cfg.SessionFile), session.Options{
		AutoRefresh:   cfg.AutoRefresh,
		RefreshMargin: time.Duration(cfg.RefreshMarginSeconds) * time.Second,
	})
	defer provider.Close()

	nav := app.NewNavigator(provider.State())
	provider.Subscribe(nav.Listen)

	sh := newShell(logger, bufio.NewReader(os.Stdin), os.Stdout, provider, nav, app.NewProjects(logger, cli, provider))
	provider.Start(ctx)

	if err := sh.run(ctx); err != nil {
		logger.Error("shell stopped", zap.Error(err))
	}
}
