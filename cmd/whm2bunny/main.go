// whm2bunny is the receiver daemon. It accepts signed webhook notifications
// from the WHM hook, provisions Bunny.net DNS zones and pull zones for the
// affected domains, and reports progress over Telegram.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mordenhost/whm2bunny/pkg/bunny"
	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/httputil"
	"github.com/mordenhost/whm2bunny/pkg/middleware"
	"github.com/mordenhost/whm2bunny/pkg/notify"
	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/provision"
	"github.com/mordenhost/whm2bunny/pkg/scheduler"
	"github.com/mordenhost/whm2bunny/pkg/state"
	"github.com/mordenhost/whm2bunny/pkg/validation"
	"github.com/mordenhost/whm2bunny/pkg/webhook"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("WHM2BUNNY_CONFIG")
	}
	if path == "" {
		path = config.DefaultServerConfigPath
	}

	if err := run(path); err != nil {
		fmt.Fprintf(os.Stderr, "whm2bunny: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Logging.Level), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.OTel.Enabled,
		Endpoint:       cfg.OTel.Endpoint,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		Insecure:       cfg.OTel.Insecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	states, err := state.NewManager(cfg.State.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}

	client := bunny.NewClient(cfg.Bunny.APIKey,
		bunny.WithBaseURL(cfg.Bunny.BaseURL),
		bunny.WithLogger(logger),
		bunny.WithMetrics(metrics),
	)

	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram notifier: %w", err)
	}

	provisioner := provision.NewProvisioner(cfg.Bunny, client, states, notifier, logger, metrics)

	validator := validation.NewValidator(nil, logger)
	handler := webhook.NewHandler(provisioner, cfg.Secret, validator, logger, metrics)

	hookHandler := buildHookHandler(handler, cfg, logger, metrics)

	router := mux.NewRouter()
	router.Handle("/hook", hookHandler).Methods(http.MethodPost)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		counts := states.CountByStatus()
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"domains": counts.Total(),
			"pending": counts.Pending + counts.Provisioning,
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      otelhttp.NewHandler(router, "whm2bunny"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sched, err := scheduler.NewScheduler(cfg.Telegram.Summary, client, notifier, states, logger)
	if err != nil {
		return fmt.Errorf("failed to create summary scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start summary scheduler: %w", err)
	}

	// Resume anything left unfinished by a previous run before taking traffic.
	provisioner.Recover(ctx)

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.ServerConfig) {
		handler.UpdateSecret(newCfg.Secret)
		logger.SetLevel(observability.ParseLogLevel(newCfg.Logging.Level))
		logger.Info("configuration reloaded")
	})
	if err != nil {
		logger.WithError(err).Warn("config hot reload unavailable")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("config watcher stopped")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server shutdown error")
		}
		sched.Stop()
		handler.Wait()
		return nil
	})

	err = g.Wait()

	if tp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		observability.ShutdownTracing(shutdownCtx, tp, logger)
		cancel()
	}

	logger.Info("shutdown complete")
	return err
}

// buildHookHandler wraps the webhook handler in the shared middleware stack
// and, when Redis is configured, the rate limiter.
func buildHookHandler(handler http.Handler, cfg *config.ServerConfig, logger *observability.Logger, metrics *observability.Metrics) http.Handler {
	wrapped := handler

	if cfg.RateLimit.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("invalid redis url, rate limiting disabled")
		} else {
			if cfg.RateLimit.RedisPassword != "" {
				opts.Password = cfg.RateLimit.RedisPassword
			}
			if cfg.RateLimit.RedisDB != 0 {
				opts.DB = cfg.RateLimit.RedisDB
			}
			limiter := middleware.NewRateLimiter(redis.NewClient(opts), cfg.RateLimit)
			if err := limiter.HealthCheck(context.Background()); err != nil {
				logger.WithError(err).Warn("redis unreachable, rate limiter will fail open")
			}
			wrapped = limiter.Handler(logger, metrics)(wrapped)
			logger.WithFields(map[string]interface{}{
				"requests_per_window": cfg.RateLimit.RequestsPerWindow,
				"window":              cfg.RateLimit.WindowDuration.String(),
			}).Info("rate limiting enabled")
		}
	}

	chain := httputil.Chain(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger, metrics),
		httputil.MaxBytesMiddleware(1<<20),
	)
	return chain(wrapped)
}
