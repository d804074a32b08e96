package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"darts-lite/apps/server/internal/bus"
	"darts-lite/apps/server/internal/config"
	"darts-lite/apps/server/internal/gateway"
	"darts-lite/apps/server/internal/httpapi"
	"darts-lite/apps/server/internal/ledger"
	"darts-lite/apps/server/internal/lobby"
	"darts-lite/apps/server/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg.LogDev)
	if err != nil {
		log.Fatalf("[Server] Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	ledgerService, ledgerMode, err := ledger.NewService(ledger.Options{
		Mode:        cfg.LedgerMode,
		SQLitePath:  cfg.LedgerSQLitePath,
		DatabaseURL: cfg.LedgerDatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer ledgerService.Close()
	writer := ledger.NewWriter(ledgerService, cfg.LedgerQueueSize, logger)

	var natsBus *bus.Bus
	lby := lobby.New(lobby.Options{
		Writer:           writer,
		SendsActualScore: cfg.DartboardSendsActualScore,
		IdleTTL:          cfg.SessionIdleTTL,
		Logger:           logger,
	})
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, "darts-lite")
		if err != nil {
			return err
		}
		natsBus = bus.New(nc, cfg.NATSSubjectPrefix, lby, logger)
		if err := natsBus.Start(); err != nil {
			nc.Close()
			return err
		}
		lby.AddEmitter(natsBus)
	}

	gw := gateway.New(lby, logger)
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Lobby:   lby,
			Ledger:  ledgerService,
			Gateway: gw,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("ledger_mode", ledgerMode),
			zap.Bool("nats", natsBus != nil),
			zap.Bool("tracing", cfg.OTelEnabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if natsBus != nil {
		if err := natsBus.Close(); err != nil {
			logger.Warn("nats drain failed", zap.Error(err))
		}
	}
	// live games are recorded as ended before the ledger closes
	lby.Shutdown(shutdownCtx)
	if err := writer.Close(shutdownCtx); err != nil {
		logger.Warn("ledger writer did not drain", zap.Error(err))
	}
	return nil
}
