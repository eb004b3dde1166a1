package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/hyperswitch-gateway/internal/core/events"
	"github.com/frahmantamala/hyperswitch-gateway/internal/host"
	paymentPostgres "github.com/frahmantamala/hyperswitch-gateway/internal/payment/postgres"
	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook"
	"github.com/frahmantamala/hyperswitch-gateway/pkg/logger"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers for payment reconciliation`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the stuck-payment reconcile worker",
	Long:  `Periodically sweeps payments stuck in pending past the processing timeout and fails them through the webhook pipeline`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	reconcileInterval time.Duration
	reconcileBatch    int
)

func startReconcileWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Gateway.Environment)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	paymentRepo := paymentPostgres.NewPaymentRepository(gormDB)
	refundRepo := paymentPostgres.NewRefundRepository(gormDB)

	idempotencyStore, err := initIdempotencyStore(config, gormDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize idempotency store: %v\n", err)
		os.Exit(1)
	}
	guard := webhook.NewGuard(idempotencyStore, log)

	bus := events.NewEventBus(log)
	hostBinding := &host.LogOnlyBinding{Logger: log}
	host.RegisterAutoCapture(bus, hostBinding, log)

	dispatcher := webhook.NewDispatcher(paymentRepo, refundRepo, guard, bus, hostBinding, config.Webhook, log)
	defer dispatcher.Stop()

	log.Info("reconcile worker started",
		"interval", reconcileInterval,
		"batch_size", reconcileBatch,
		"processing_timeout", config.Webhook.ProcessingTimeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), reconcileInterval)
			n, err := dispatcher.ReconcileStuck(ctx, reconcileBatch)
			cancel()
			if err != nil {
				log.Error("reconcile sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("reconcile sweep complete", "reconciled", n)
			}
		case sig := <-sigChan:
			log.Info("received signal, shutting down reconcile worker", "signal", sig)
			return
		}
	}
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", 5*time.Minute, "Sweep interval")
	reconcileWorkerCmd.Flags().IntVar(&reconcileBatch, "batch-size", 100, "Maximum payments reconciled per sweep")

	workerCmd.AddCommand(reconcileWorkerCmd)
}
