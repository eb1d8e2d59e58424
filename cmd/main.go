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
	"time"

	"github.com/redis/go-redis/v9"

	"smart-store/internal/config"
	"smart-store/internal/database"
	"smart-store/internal/logger"
	"smart-store/internal/messaging"
	"smart-store/internal/server"
	"smart-store/internal/services/cart"
	"smart-store/internal/services/notification"
	"smart-store/internal/services/tracking"
	"smart-store/internal/storage"
)

// recordStore is a record store that also keeps the order status log
type recordStore interface {
	storage.Store
	storage.HistoryStore
}

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (store-service, alert-subscriber)")
		port       = flag.Int("port", 0, "HTTP port (overrides server.port)")
		configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
		prefetch   = flag.Int("prefetch", 10, "RabbitMQ prefetch count for alert-subscriber")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":   *mode,
		"port":   cfg.Server.Port,
		"driver": cfg.Storage.Driver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "store-service":
		if err := runStoreService(ctx, cfg, log); err != nil {
			log.Error("service_failed", "Store service failed", requestID, err, nil)
			os.Exit(1)
		}
	case "alert-subscriber":
		if err := runAlertSubscriber(ctx, cfg, log, *prefetch); err != nil {
			log.Error("service_failed", "Alert subscriber failed", requestID, err, nil)
			os.Exit(1)
		}
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// openRecords connects the configured record store
func openRecords(ctx context.Context, cfg *config.Config, log *logger.Logger) (recordStore, error) {
	requestID := logger.GenerateRequestID()

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

		if err := db.RunMigrations(ctx, database.Migrations()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return storage.NewPostgresStore(db), nil

	case config.DriverMongo:
		store, err := storage.ConnectMongo(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info("db_connected", "Connected to MongoDB", requestID, map[string]interface{}{
			"database": cfg.Storage.MongoDatabase,
		})
		return store, nil

	default:
		log.Warn("memory_store", "Using in-memory record store, data is lost on restart", requestID, nil)
		return storage.NewMemoryStore(), nil
	}
}

// openCarts returns the Redis cart store when configured, else an in-memory one
func openCarts(ctx context.Context, cfg *config.Config, log *logger.Logger) (cart.Store, *tracking.Check, func(), error) {
	if cfg.Redis.Addr == "" {
		return cart.NewMemoryStore(), nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("redis_connected", "Connected to Redis", "", map[string]interface{}{"addr": cfg.Redis.Addr})

	check := &tracking.Check{Name: "redis", Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
	return cart.NewRedisStore(client, cfg.Redis.CartTTL), check, func() { client.Close() }, nil
}

func runStoreService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	records, err := openRecords(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer records.Close()

	carts, redisCheck, closeCarts, err := openCarts(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCarts()

	images, err := storage.NewDiskImageStore(cfg.Server.UploadDir)
	if err != nil {
		return err
	}

	backends := server.Backends{
		Records:  records,
		History:  records,
		Images:   images,
		Carts:    carts,
		Notifier: messaging.NopNotifier{},
	}
	if redisCheck != nil {
		backends.Checks = append(backends.Checks, *redisCheck)
	}

	if cfg.NotificationsEnabled() {
		conn, err := messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

		backends.Notifier = messaging.NewPublisher(conn, log)
		backends.Checks = append(backends.Checks, tracking.Check{Name: "rabbitmq", Ping: func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}

	app, err := server.NewApp(cfg, backends, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Server.SeedDefaults {
		if err := app.Seed(ctx, requestID); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(app.Close)

	errCh := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("Store service started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
			"port":          cfg.Server.Port,
			"notifications": cfg.NotificationsEnabled(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAlertSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	if !cfg.NotificationsEnabled() {
		return errors.New("rabbitmq.host is required for alert-subscriber mode")
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.StaffAlertsQueue, "alert-subscriber", prefetch)
	gate := notification.NewGate(cfg.Alerts.VisualWindow, cfg.Alerts.AudioCooldown)
	return notification.NewSubscriber(consumer, gate, log, os.Stdout).Start(ctx)
}
