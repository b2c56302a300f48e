package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"billflow/internal/config"
	"billflow/internal/database"
	"billflow/internal/handlers"
	"billflow/internal/logger"
	"billflow/internal/middleware"
	"billflow/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recurring scheduler and the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log := logger.New(cfg.Log)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	go logPoolStats(ctx, db, log)

	loc, err := cfg.Recurring.Location()
	if err != nil {
		return err
	}

	store := services.NewGormInvoiceStore(db)
	links := services.NewLinkSigner(cfg.Links)

	dispatcher, err := newDispatcher(ctx, cfg, store, links, log)
	if err != nil {
		return err
	}

	lock, closeLock, err := newPassLock(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeLock()

	metrics, err := services.NewRecurringMetrics(nil)
	if err != nil {
		return err
	}

	recurring := services.NewRecurringService(store, dispatcher, log,
		services.WithLocation(loc),
		services.WithMaxNumberRetries(cfg.Recurring.MaxNumberRetries),
		services.WithPassLock(lock),
		services.WithRunStore(store),
		services.WithMetrics(metrics),
	)

	var schedule handlers.Schedule
	var scheduler *services.RecurringScheduler
	if cfg.Recurring.Enabled {
		scheduler = services.NewRecurringScheduler(recurring, cfg.Recurring.Schedule, loc, log)
		if err := scheduler.Start(); err != nil {
			return err
		}
		schedule = scheduler
	} else {
		log.Warn("recurring invoices disabled")
	}

	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := handlers.NewHandler(db, store, store, links, schedule)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      setupRouter(log, handler, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting billflow server",
			zap.String("port", cfg.Server.Port),
			zap.String("mode", cfg.Server.Mode),
			zap.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if scheduler != nil {
		// let a running pass finish before the database closes
		if err := scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
		}
	}

	log.Info("server exited")
	return errors.Join(errs...)
}

func newDispatcher(ctx context.Context, cfg *config.Config, store services.InvoiceStore, links *services.LinkSigner, log *zap.Logger) (*services.Dispatcher, error) {
	renderer, err := services.NewRenderer(cfg.PDF, log)
	if err != nil {
		return nil, err
	}
	mailer := services.NewMailer(cfg.Mail, log)

	opts := []services.DispatcherOption{
		services.WithLinkSigner(links),
		services.WithFallbackCompanyName(cfg.Mail.FromName),
		services.WithDispatchTimeout(cfg.Timeouts.ExternalAPI),
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := services.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithArchiver(archiver))
		log.Info("invoice archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	return services.NewDispatcher(store, renderer, mailer, log, opts...), nil
}

// newPassLock always guards the pass in-process and, when Redis is
// configured, across replicas too.
func newPassLock(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (services.PassLock, func(), error) {
	local := services.NewLocalPassLock()
	if cfg.Addr == "" {
		return local, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("distributed pass lock enabled", zap.String("addr", cfg.Addr), zap.String("key", cfg.LockKey))
	lock := services.ChainLocks(local, services.NewRedisPassLock(client, cfg.LockKey, cfg.LockTTL))
	return lock, func() { client.Close() }, nil
}

func logPoolStats(ctx context.Context, db *database.DB, log *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			log.Debug("database pool",
				zap.Int("open", stats.OpenConnections),
				zap.Int("idle", stats.Idle),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
			)
		case <-ctx.Done():
			return
		}
	}
}

