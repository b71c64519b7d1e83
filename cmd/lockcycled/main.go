package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lockcycled/internal/api"
	"lockcycled/internal/config"
	"lockcycled/internal/core"
	"lockcycled/internal/logging"
	lockcycledmcp "lockcycled/internal/mcp"
	"lockcycled/internal/notify"
	"lockcycled/internal/store"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level)
	cfg.AttachLogger(logger)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.StateDir, cfg.SessionKeep)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.DB.Close()

	if err := storeInst.PruneOldSessions(baseCtx); err != nil {
		logger.Warn("prune sessions", "err", err)
	}

	notifier := buildNotifier(cfg, logger)
	engine := core.NewEngine(storeInst, storeInst, notifier, cfg, logger)
	defer engine.Dispose()

	var autoStarter *core.AutoStarter
	if cfg.AutostartCron != "" {
		autoStarter = core.NewAutoStarter(engine, logger)
		if err := autoStarter.Arm(cfg.AutostartCron); err != nil {
			logger.Error("arm autostart", "cron", cfg.AutostartCron, "err", err)
			os.Exit(1)
		}
	}

	switch cfg.Mode {
	case "http", "":
		runHTTPMode(cfg, storeInst, engine, autoStarter, logger)
	case "mcp":
		runMCPMode(storeInst, engine, autoStarter, logger)
	case "both":
		runBothMode(cfg, storeInst, engine, autoStarter, logger)
	default:
		logger.Error("invalid mode", "mode", cfg.Mode, "valid", []string{"http", "mcp", "both"})
		os.Exit(1)
	}
}

// runHTTPMode serves only the HTTP control API.
func runHTTPMode(cfg *config.Config, storeInst *store.Store, engine *core.Engine, autoStarter *core.AutoStarter, logger *slog.Logger) {
	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, engine, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	shutdown(engine, autoStarter, cfg.ShutdownGrace, logger)
}

// runMCPMode serves only the MCP stdio server.
func runMCPMode(storeInst *store.Store, engine *core.Engine, autoStarter *core.AutoStarter, logger *slog.Logger) {
	mcpServer := lockcycledmcp.NewMCPServer(storeInst, engine, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		shutdown(engine, autoStarter, 5*time.Second, logger)
		os.Exit(0)
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode serves the HTTP API and the MCP stdio server together.
func runBothMode(cfg *config.Config, storeInst *store.Store, engine *core.Engine, autoStarter *core.AutoStarter, logger *slog.Logger) {
	mcpServer := lockcycledmcp.NewMCPServer(storeInst, engine, logger)
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server, err := api.NewServer(cfg.Server.Addr, cfg.Server.AuthToken, storeInst, engine, logger)
	if err != nil {
		logger.Error("create server", "err", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	shutdown(engine, autoStarter, cfg.ShutdownGrace, logger)
	logger.Info("shutdown complete")
}

func shutdown(engine *core.Engine, autoStarter *core.AutoStarter, grace time.Duration, logger *slog.Logger) {
	engine.Stop()
	if autoStarter == nil {
		return
	}
	stopCtx := autoStarter.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		logger.Warn("autostart stop timed out")
	}
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notification.Desktop {
		notifiers = append(notifiers, notify.NewDesktopNotifier(func() core.Runner {
			if cfg.Cycling().DryRun {
				return core.NewDryRunner(logger)
			}
			return core.NewExecRunner(logger)
		}))
	}
	if cfg.Notification.Bark.Enabled {
		bark, err := notify.NewBarkNotifier(cfg.Notification.Bark.URL)
		if err != nil {
			logger.Warn("bark notifier disabled", "err", err)
		} else {
			notifiers = append(notifiers, bark)
		}
	}
	if len(notifiers) == 0 {
		return &notify.NoOpNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}
