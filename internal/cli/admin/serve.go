package admin

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ckr-labs/roofkb/internal/api/handlers"
	"github.com/ckr-labs/roofkb/internal/config"
	"github.com/ckr-labs/roofkb/internal/jobs"
	"github.com/ckr-labs/roofkb/internal/server"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the knowledge base API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the background embedding worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.HasSentry() {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry init failed (continuing without tracing): %v\n", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, err := buildApp(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer a.Close()

	var embedWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if a.embeddingSvc != nil && !noWorker {
		processor := jobs.NewEmbedWorker(a.embedJobRepo, a.embeddingSvc, a.log)
		embedWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval, a.log)
		go embedWorker.Start(ctx)
		a.log.Info().Msg("embedding worker started")
	}

	fileHandler := handlers.NewFileHandler(a.fileSvc)
	conflictHandler := handlers.NewConflictHandler(a.conflictSvc, a.fileSvc)
	syncHandler := handlers.NewSyncHandler(a.syncSvc)

	var searchHandler *handlers.SearchHandler
	var summaryHandler *handlers.SummaryHandler
	if a.searchSvc != nil {
		searchHandler = handlers.NewSearchHandler(a.searchSvc)
		summaryHandler = handlers.NewSummaryHandler(a.summarySvc)
	} else {
		searchHandler = handlers.NewSearchHandler(&noOpSearchService{})
		summaryHandler = handlers.NewSummaryHandler(&noOpSummaryService{})
	}

	router := server.NewRouter(server.RouterConfig{
		AdminToken:      cfg.AdminToken,
		Logger:          a.log,
		FileHandler:     fileHandler,
		SearchHandler:   searchHandler,
		ConflictHandler: conflictHandler,
		SummaryHandler:  summaryHandler,
		SyncHandler:     syncHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		a.log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info().Msg("shutting down...")

	if embedWorker != nil {
		embedWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info().Msg("server exited")
	return nil
}
