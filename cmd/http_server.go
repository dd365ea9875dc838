package cmd

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

	"github.com/spf13/cobra"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/branchscan"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/postgres"
	"github.com/frahmantamala/courier-fulfillment/internal/geocode"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
	"github.com/frahmantamala/courier-fulfillment/internal/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/paymentgateway"
	"github.com/frahmantamala/courier-fulfillment/internal/qrcode"
	"github.com/frahmantamala/courier-fulfillment/internal/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/storage"
	"github.com/frahmantamala/courier-fulfillment/internal/transport/rest"
	"github.com/frahmantamala/courier-fulfillment/internal/user"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and payment callbacks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		return startHTTPServer(cmd.Context(), cfg)
	},
}

func startHTTPServer(ctx context.Context, cfg *internal.Config) error {
	log := logger.LoggerWrapper()

	if _, err := rest.LoadOpenAPI(ctx, cfg.Server.OpenAPIPath); err != nil {
		return fmt.Errorf("openapi document: %w", err)
	}

	sqlDB, db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	queue, redisClient := jobBackend(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus, sink, err := newEventBus(cfg.Events, log)
	if err != nil {
		return err
	}
	defer func() {
		bus.Wait()
		if err := sink.Close(); err != nil {
			log.Error("event sink close error", "error", err)
		}
	}()

	uow := postgres.NewUnitOfWorkFactory(db)
	if runsJobsInProcess(cfg) {
		stopJobs, err := startInProcessJobs(ctx, cfg.Jobs, queue, uow, smtpSender(cfg.SMTP), log)
		if err != nil {
			return err
		}
		defer stopJobs()
	}
	authz := auth.NewAuthorizer(postgres.NewUserRepository(db), log)
	scheduler := jobs.NewScheduler(queue, cfg.Jobs.EmailAttempts, log)
	files := storage.NewLocalStore(cfg.Storage.BaseDir, cfg.Storage.PublicURL, log)
	engine := shipment.NewEngine(uow, bus, log)

	geocoder := geocode.NewOpenCageClient(geocode.Config{
		BaseURL: cfg.OpenCage.BaseURL,
		APIKey:  cfg.OpenCage.APIKey,
		Timeout: cfg.OpenCage.Timeout,
	}, log)
	invoices := paymentgateway.NewClient(paymentgateway.Config{
		BaseURL:   cfg.Xendit.BaseURL,
		SecretKey: cfg.Xendit.SecretKey,
		Timeout:   cfg.Xendit.Timeout,
	}, log)

	shipments := shipment.NewService(uow, authz, geocoder, invoices, scheduler, shipment.Config{
		FrontendURL:     cfg.App.FrontendURL,
		InvoiceDuration: cfg.Xendit.InvoiceDuration,
	}, log)
	courier := shipment.NewCourierService(uow, authz, engine, files, log)
	scans := branchscan.NewProcessor(uow, authz, engine, log)
	reconciler := payment.NewReconciler(uow, qrcode.NewGenerator(files), scheduler, bus, log)

	health := map[string]rest.Pinger{"database": sqlDB}
	if redisClient != nil {
		health["redis"] = redisPinger{client: redisClient}
	}

	router := rest.NewRouter(rest.Handlers{
		Shipments:  shipment.NewHandler(shipments, log),
		Courier:    shipment.NewCourierHandler(courier, log),
		BranchScan: branchscan.NewHandler(scans, log),
		Webhook:    payment.NewWebhookHandler(reconciler, cfg.Xendit.CallbackToken, log),
		Users:      user.NewHandler(user.NewService(uow, log), log),
		Health:     health,
	}, auth.NewJWTTokenGenerator(cfg.Security.JWTSecret), rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		FilesDir:       cfg.Storage.BaseDir,
	}, log)

	return serve(ctx, &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, log)
}

// serve runs server until SIGINT or SIGTERM, then drains in-flight requests.
func serve(ctx context.Context, server *http.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
