package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/storekit/paygate/internal/bootstrap"
	"github.com/storekit/paygate/internal/cache"
	"github.com/storekit/paygate/internal/controller"
	"github.com/storekit/paygate/internal/gateway"
	"github.com/storekit/paygate/internal/infrastructure/observability"
	"github.com/storekit/paygate/internal/logsink"
	"github.com/storekit/paygate/internal/ratelimit"
	"github.com/storekit/paygate/internal/repository/postgres"
	"github.com/storekit/paygate/internal/service"
	"github.com/storekit/paygate/internal/session"
	"github.com/storekit/paygate/internal/settings"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "paygate-api", "paygate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Storage ---
	orderRepo := postgres.NewOrderRepository(app.Pool)
	bindings := session.NewRedisBindingStore(app.Redis)
	tokenCache := cache.NewRedisTokenCache(app.Redis)
	settingsStore := settings.NewRedisStore(app.Redis, app.Logger)

	// --- Event log ---
	var sink logsink.Sink = logsink.NewZerologSink(app.Logger)
	if app.Config.Observability.EventStream {
		sink = logsink.MultiSink{sink, logsink.NewStreamSink(app.Redis, app.Logger)}
	}

	// --- Gateway ---
	registry := gateway.NewRegistry(gateway.NewBankClient(app.Config.Gateway, app.Metrics))
	bankGateway, err := registry.Get("bank-webgate")
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("gateway registry misconfigured")
	}

	// --- Services ---
	validator := service.NewTokenValidator(
		bankGateway, tokenCache, app.Config.Cache.ValidationTTL, app.Metrics,
		observability.ComponentLogger(app.Logger, "token_validator"))
	reconciler := service.NewPaymentReconciler(
		validator, orderRepo, bindings, sink, app.Metrics,
		observability.ComponentLogger(app.Logger, "payment_reconciler")).
		WithTxRunner(postgres.NewTxManager(app.Pool))
	limiter := ratelimit.NewFixedWindowLimiter(
		app.Redis, app.Config.RateLimit.MaxAttempts, app.Config.RateLimit.Window,
		observability.ComponentLogger(app.Logger, "rate_limiter"))

	// --- Router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Orders:      orderRepo,
		Bindings:    bindings,
		Gateway:     bankGateway,
		Reconciler:  reconciler,
		Limiter:     limiter,
		Sink:        sink,
		Metrics:     app.Metrics,
		Settings:    settingsStore,
		Config:      app.Config,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Server exited")
}
