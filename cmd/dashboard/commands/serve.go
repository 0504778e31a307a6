package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xela07ax/shuma-dashboard/internal/console/server"
	"github.com/xela07ax/shuma-dashboard/internal/console/service"
	"github.com/xela07ax/shuma-dashboard/internal/infra"
	"github.com/xela07ax/shuma-dashboard/internal/runtime"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the runtime with the HTTP adapter for the web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := infra.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			return runServe(cfg, logger)
		},
	}
}

func runServe(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст жизни приложения: SIGINT/SIGTERM отменяет подписки и поллинг
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(appCtx, cfg, runtime.Options{
		OnRedirect: func(loginURL string) {
			logger.Warn("admin session lost, UI must re-login", zap.String("redirect", loginURL))
		},
	}, logger)
	if err != nil {
		return err
	}

	journalSvc := service.NewJournalService(nil)
	if a.repo != nil {
		journalSvc = service.NewJournalService(a.repo)
	}
	handler := server.NewConsoleServer(a.rt, server.Options{
		AdapterToken: cfg.Server.AdapterToken,
		Gatherer:     a.reg,
		Journal:      journalSvc,
	}, logger)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.start(appCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard adapter started", zap.String("addr", srv.Addr), zap.String("api", cfg.API.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-appCtx.Done():
	case err = <-errCh:
	}
	logger.Info("dashboard adapter stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("server shutdown failed", zap.Error(shutdownErr))
	}
	a.stop()
	logger.Info("dashboard adapter exited properly")

	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
