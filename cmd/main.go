package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customer-service/internal/api"
	mw "customer-service/internal/api/middleware"
	"customer-service/internal/batch"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/database/memory"
	"customer-service/internal/infrastructure/database/mongodb"
	"customer-service/internal/infrastructure/database/postgres"
	"customer-service/internal/infrastructure/logging"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/docstore"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// @title Customer Service API
// @version 1.0
// @description Customer records backed by a document store.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	coll, closeStore, err := initializeStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize document store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	bootstrapper := customer.NewIndexBootstrapper(coll, docstore.IndexDefinition{
		Name:   cfg.Store.Index.Name,
		Field:  cfg.Store.Index.Field,
		Unique: cfg.Store.Index.Unique,
	}, logger)
	ensureIndex(cfg, bootstrapper, logger)

	rabbitMQConn := initializeRabbitMQ(cfg, logger)
	customerService := customer.NewCustomerService(coll, initializePublisher(cfg, rabbitMQConn, logger), logger)

	redisClient := initializeRedisClient(cfg, logger)
	rateLimiter := initializeRateLimiter(cfg, redisClient, logger)

	indexJob := batch.NewIndexCheckJob(bootstrapper, customerService, logger)
	cronScheduler := startBatchJobs(cfg, logger, indexJob)

	router := api.SetupRouter(customerService, rateLimiter, cfg, logger)
	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)

	closeRabbitMQConnection(rabbitMQConn, logger)
	closeRedisClient(redisClient, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "store_driver", cfg.Store.Driver)

	return cfg, logger
}

// initializeStore opens the configured backend and returns it wrapped with
// metrics, plus a function that releases its connections.
func initializeStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Collection, func(), error) {
	logger.Info("Initializing document store...", "driver", cfg.Store.Driver, "collection", cfg.Store.Collection)

	switch cfg.Store.Driver {
	case config.DriverMongoDB:
		client, err := mongodb.NewClient(ctx, cfg.Store, logger)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			logger.Info("Disconnecting MongoDB client...")
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Error("Failed to disconnect MongoDB client", slog.Any("error", err))
			}
		}
		coll := mongodb.NewCollection(client, cfg.Store.Database, cfg.Store.Collection, logger)
		return monitoring.NewInstrumentedCollection(coll), closer, nil

	case config.DriverPostgres:
		pool, err := postgres.NewConnectionPool(ctx, cfg.Store, logger)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			logger.Info("Closing database connection pool...")
			pool.Close()
		}
		coll, err := postgres.NewCollection(pool, cfg.Store.Collection, logger)
		if err != nil {
			closer()
			return nil, nil, err
		}
		if err := coll.EnsureTable(ctx); err != nil {
			closer()
			return nil, nil, err
		}
		return monitoring.NewInstrumentedCollection(coll), closer, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory document store; data is lost on restart")
		coll := memory.NewCollection(cfg.Store.Collection, logger)
		return monitoring.NewInstrumentedCollection(coll), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// ensureIndex runs once before the server accepts traffic.
func ensureIndex(cfg *config.Config, bootstrapper *customer.IndexBootstrapper, logger *slog.Logger) {
	timeout := cfg.Batch.IndexCheckTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := bootstrapper.EnsureUsernameIndex(ctx); err != nil {
		monitoring.SetIndexPresent(false)
		logger.Error("Failed to ensure username index, refusing to start", slog.Any("error", err))
		os.Exit(1)
	}
	monitoring.SetIndexPresent(true)
	monitoring.SetStoreUp(true)
}

func initializeRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, customer events will not be published")
		return nil
	}
	conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, 5, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", slog.Any("error", err))
		os.Exit(1)
	}
	return conn
}

func connectRabbitMQ(uri string, retryCount int, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}

func initializePublisher(cfg *config.Config, conn *amqp.Connection, logger *slog.Logger) event.EventPublisher {
	if conn == nil {
		return event.NoopPublisher{}
	}
	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize event publisher", slog.Any("error", err))
		os.Exit(1)
	}
	return publisher
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn == nil || rabbitConn.IsClosed() {
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := rabbitConn.Close(); err != nil {
		logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
	}
}

// initializeRedisClient only connects when the redis rate limit backend is
// selected; nothing else uses Redis.
func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	rl := cfg.Server.RateLimit
	if !rl.Enabled || rl.Backend != mw.BackendRedis {
		return nil
	}

	logger.Info("Initializing Redis client...", "addr", cfg.Redis.Addr)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.Redis.Addr)
		_ = rdb.Close()
		os.Exit(1)
	}

	logger.Info("Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	}
}

func initializeRateLimiter(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *mw.RateLimiterMiddleware {
	var counter mw.RedisCounter
	if redisClient != nil {
		counter = redisClient
	}
	return mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, counter, logger)
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, indexJob *batch.IndexCheckJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.IndexCheckSchedule
	if scheduleSpec == "" {
		scheduleSpec = "*/15 * * * *"
		logger.Warn("Index check schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.IndexCheckTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "IndexCheck")
		jobLogger.Debug("Cron triggered: Running index check job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := indexJob.Run(ctx); runErr != nil {
			jobLogger.Error("Index check job finished with error", slog.Any("error", runErr))
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule index check job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled index check job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
