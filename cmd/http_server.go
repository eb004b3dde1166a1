package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/events"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
	"github.com/frahmantamala/hyperswitch-gateway/internal/host"
	paymentpkg "github.com/frahmantamala/hyperswitch-gateway/internal/payment"
	paymentPostgres "github.com/frahmantamala/hyperswitch-gateway/internal/payment/postgres"
	"github.com/frahmantamala/hyperswitch-gateway/internal/transport/rest"
	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook"
	webhookPostgres "github.com/frahmantamala/hyperswitch-gateway/internal/webhook/postgres"
	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook/redisstore"
	"github.com/frahmantamala/hyperswitch-gateway/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server serving the payment API and the webhook endpoint`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Router     *chi.Mux
	Client     *gateway.Client
	Dispatcher *webhook.Dispatcher
	Logger     *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.Dispatcher.Stop()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Gateway.Environment)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	client := gateway.NewClient(gateway.Config{
		APIKey:         config.Gateway.APIKey,
		Environment:    config.Gateway.Environment,
		BaseURL:        config.Gateway.BaseURL,
		RequestTimeout: config.Gateway.RequestTimeout,
		MaxRetries:     config.Gateway.MaxRetries,
		Proxy:          &config.Proxy,
	}, log)

	paymentRepo := paymentPostgres.NewPaymentRepository(gormDB)
	refundRepo := paymentPostgres.NewRefundRepository(gormDB)

	idempotencyStore, err := initIdempotencyStore(config, gormDB)
	if err != nil {
		return nil, err
	}
	guard := webhook.NewGuard(idempotencyStore, log)

	bus := events.NewEventBus(log)
	hostBinding := &host.LogOnlyBinding{Logger: log}
	host.RegisterAutoCapture(bus, hostBinding, log)

	dispatcher := webhook.NewDispatcher(paymentRepo, refundRepo, guard, bus, hostBinding, config.Webhook, log)

	verifier := gateway.NewSignatureVerifier(config.Gateway.PaymentHashKey)
	provider := paymentpkg.NewProvider(
		client.Transactions, client.Refunds, verifier,
		paymentRepo, refundRepo, &config.Gateway, log)

	paymentHandler := paymentpkg.NewHandler(provider, log)
	webhookHandler := webhook.NewHandler(verifier, dispatcher, log)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, client, paymentHandler, webhookHandler)

	return &Dependencies{
		Config:     config,
		DB:         db,
		Router:     router,
		Client:     client,
		Dispatcher: dispatcher,
		Logger:     log,
	}, nil
}

func initIdempotencyStore(config *internal.Config, gormDB *gorm.DB) (webhook.Store, error) {
	switch config.Idempotency.Store {
	case internal.IdempotencyStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisstore.NewIdempotencyStore(client), nil
	case "", internal.IdempotencyStorePostgres:
		return webhookPostgres.NewIdempotencyStore(gormDB), nil
	}
	return nil, fmt.Errorf("unknown idempotency store %q", config.Idempotency.Store)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
