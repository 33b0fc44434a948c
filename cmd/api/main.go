package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tonerolima/kobopay/internal/api"
	"github.com/tonerolima/kobopay/internal/config"
	"github.com/tonerolima/kobopay/internal/gateway"
	"github.com/tonerolima/kobopay/internal/ledger"
	"github.com/tonerolima/kobopay/internal/notify"
	"github.com/tonerolima/kobopay/internal/reconcile"
	"github.com/tonerolima/kobopay/internal/session"
	"github.com/tonerolima/kobopay/internal/store"
	"github.com/tonerolima/kobopay/internal/worker"
)

const (
	paystackBaseURL = "https://api.paystack.co"
	vtuBaseURL      = "https://vtuafrica.com.ng/portal/api"

	confirmWorkers    = 4
	confirmBufferSize = 256
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DBSource)
	if err != nil {
		logger.Error("connecting to database failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := ledger.NewEngine(db, logger)
	recon := reconcile.NewEngine(db, logger)
	sessions := session.NewManager(store.NewSessionStore(db), []byte(cfg.JWTSecret), cfg.SessionTTL, logger)

	pool := worker.NewPool(confirmBufferSize, engine, logger)
	pool.Start(confirmWorkers)

	handler := api.NewHandler(api.HandlerConfig{
		Engine:      engine,
		Recon:       recon,
		Users:       db,
		Sessions:    sessions,
		Resolver:    gateway.NewClient(paystackBaseURL, cfg.PaystackSecret),
		Transfers:   gateway.NewClient(paystackBaseURL, cfg.PaystackSecret),
		Airtime:     gateway.NewVTUClient(vtuBaseURL, cfg.VTUAPIKey),
		Notifier:    notify.New(logger),
		Pool:        pool,
		WebhookBase: cfg.WebhookBaseURL,
		EventsURL:   cfg.EventsURL,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Drain queued confirmations before the pool's store goes away.
	pool.Shutdown()
	logger.Info("server stopped")
}
