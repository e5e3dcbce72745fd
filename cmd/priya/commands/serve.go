package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/priyabot/priya/pkg/priya/channels/telegram"
	"github.com/priyabot/priya/pkg/priya/keepalive"
	"github.com/priyabot/priya/pkg/priya/memory"
)

// shutdownTimeout bounds the graceful stop of the keep-alive server.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the `priya serve` command that runs the Telegram bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the keep-alive server",
		Long: `Start priya on Telegram with long polling. The keep-alive server
answers / and /health and exposes Prometheus metrics on /metrics.

Examples:
  priya serve
  BOT_TOKEN=123:abc OPENROUTER_API_1=sk-... priya serve
  priya serve --config ./config.yaml -v`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cmd, cfg.Logging, os.Stdout)

	// ── Storage ──
	store, err := memory.OpenSQLite(cfg.Memory, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── Pipeline ──
	tg := telegram.New(cfg.Telegram, logger)
	b, err := newPipeline(cfg, tg, store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Keep-alive server ──
	ka := keepalive.New(cfg.KeepAlive, b.Gate(), logger)
	if err := ka.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ka.Stop(shutdownCtx); err != nil {
			logger.Warn("keep-alive server did not stop cleanly", "error", err)
		}
	}()

	logger.Info("priya running. Press Ctrl+C to stop.",
		"admins", len(b.Gate().Admins()),
		"address", ka.Addr(),
	)

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bot stopped: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
