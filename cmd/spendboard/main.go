package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"os"
	"time"

	"spendboard/internal/amqp"
	"spendboard/internal/auth"
	"spendboard/internal/backend"
	"spendboard/internal/cache"
	"spendboard/internal/chart"
	"spendboard/internal/cli"
	"spendboard/internal/config"
	apphttp "spendboard/internal/http"
	"spendboard/internal/log"
	"spendboard/internal/middleware/ratelimit"
	"spendboard/internal/services"
	"spendboard/internal/session"
	"spendboard/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	chartCacheTTL   = time.Hour
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	startup := context.Background()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger)

	src, err := factory.CreateSource(startup, bcfg)
	if err != nil {
		return err
	}
	ids, err := factory.CreateIdentityStore(startup, bcfg)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(ids.Store, 0, logger)
	if _, err := authSvc.Bootstrap(startup, auth.BootstrapConfig{
		UsersFile:     cfg.BootstrapUsersFile,
		AdminUsername: cfg.BootstrapAdminUsername,
		AdminPassword: cfg.BootstrapAdminPassword,
	}); err != nil {
		closeAll(logger, ids.Cleanup, src.Cleanup)
		return err
	}

	secret, err := cfg.SessionKey()
	if err != nil {
		closeAll(logger, ids.Cleanup, src.Cleanup)
		return err
	}
	sessions, err := session.NewManager(session.Config{
		Secret: secret,
		Secure: cfg.SessionCookieSecure,
		MaxAge: cfg.SessionMaxAge,
	})
	if err != nil {
		closeAll(logger, ids.Cleanup, src.Cleanup)
		return err
	}

	refresher := services.NewRefresher(src.Source, services.RefreshConfig{
		ExpensesSheet:    cfg.ExpensesSheetName,
		InvestmentsSheet: cfg.InvestmentsSheetName,
		SourceTimeout:    cfg.SourceTimeout,
		Retries:          cfg.RefreshRetries,
		Backoff:          cfg.RefreshBackoff,
	}, logger)
	if _, err := refresher.Refresh(startup); err != nil {
		logger.Warn("Initial refresh failed, serving empty dashboards until the next refresh",
			log.FieldOperation, log.OpStartup, log.FieldError, err)
	}

	renderer, err := chart.NewRenderer(chart.Options{FontFile: cfg.ChartFontFile})
	if err != nil {
		closeAll(logger, ids.Cleanup, src.Cleanup)
		return err
	}
	fragments := cache.NewLRUCache[template.HTML](cfg.ChartCacheSize, chartCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(fragments)
	caches.StartCleanup(10 * time.Minute)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Snapshots:      refresher,
		Auth:           authSvc,
		Sessions:       sessions,
		Charts:         chart.NewCached(renderer, fragments),
		Logger:         logger,
		SpreadsheetURL: cfg.SpreadsheetURL,
		RefreshLimit:   ratelimit.Config{Requests: 10, Window: time.Minute},
	})
	if err != nil {
		caches.Stop()
		closeAll(logger, ids.Cleanup, src.Cleanup)
		return err
	}

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to connect to broker, refresh triggers disabled", log.FieldError, err)
			broker = nil
		}
	}

	root, stop := context.WithCancel(context.Background())
	defer stop()
	ctx, done := cli.GracefulShutdown(root, logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if broker != nil {
			_ = broker.Close()
		}
		closeAll(logger, ids.Cleanup, src.Cleanup)
	})

	go refresher.Run(ctx, cfg.RefreshInterval)
	if broker != nil {
		w := worker.NewRefreshWorker(refresher, logger)
		go func() {
			if err := w.Run(ctx, broker); err != nil {
				logger.Error("Refresh consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting spendboard server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"identity_backend", cfg.IdentityBackend,
		"refresh_interval", cfg.RefreshInterval.String(),
		"amqp_enabled", broker != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server stopped unexpectedly", log.FieldError, err)
		stop()
		<-done
		return err
	}
	cli.WaitForShutdown(ctx, done)
	return nil
}

func closeAll(logger *log.Logger, fns ...backend.CleanupFunc) {
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			logger.Warn("Cleanup failed", log.FieldError, err)
		}
	}
}
