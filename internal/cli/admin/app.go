package admin

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/ai"
	"github.com/ckr-labs/roofkb/internal/config"
	"github.com/ckr-labs/roofkb/internal/database"
	"github.com/ckr-labs/roofkb/internal/repository"
	"github.com/ckr-labs/roofkb/internal/service"
	"github.com/ckr-labs/roofkb/internal/storage"
)

// app bundles the wired services every admin command needs.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool

	fileRepo     *repository.FileRepository
	chunkRepo    *repository.ChunkRepository
	conflictRepo *repository.ConflictRepository
	syncRuleRepo *repository.SyncRuleRepository
	embedJobRepo *repository.EmbedJobRepository
	metricsRepo  *repository.MetricsRepository

	embeddingClient  *ai.Client
	completionClient *ai.CompletionClient

	conflictSvc  *service.ConflictService
	fileSvc      *service.FileService
	embeddingSvc *service.EmbeddingService
	searchSvc    *service.SearchService
	summarySvc   *service.SummaryService
	syncSvc      *service.SyncService
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// buildApp connects to the database and wires the service graph.
// Callers must Close the app when done.
func buildApp(ctx context.Context, cfg *config.Config, migrateDB bool) (*app, error) {
	log := newLogger(cfg.Debug)

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("connected to database")

	if migrateDB {
		if err := runMigrations(cfg.DatabaseURL, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a := &app{
		cfg:          cfg,
		log:          log,
		pool:         pool,
		fileRepo:     repository.NewFileRepository(pool),
		chunkRepo:    repository.NewChunkRepository(pool),
		conflictRepo: repository.NewConflictRepository(pool),
		syncRuleRepo: repository.NewSyncRuleRepository(pool),
		embedJobRepo: repository.NewEmbedJobRepository(pool),
		metricsRepo:  repository.NewMetricsRepository(pool),
	}

	if cfg.HasOpenAI() {
		a.embeddingClient = ai.NewClient(cfg.OpenAIAPIKey)
		a.completionClient = ai.NewCompletionClient(cfg.OpenAIAPIKey)
	}

	var completion service.CompletionClient
	if a.completionClient != nil {
		completion = a.completionClient
	}
	a.conflictSvc = service.NewConflictService(a.conflictRepo, completion, log)

	txRunner := repository.NewTxRunner(pool)
	a.fileSvc = service.NewFileService(a.fileRepo, a.embedJobRepo, a.chunkRepo, a.conflictSvc, txRunner)

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info().Str("bucket", cfg.S3Bucket).Msg("version archive ready")
		a.fileSvc.WithArchiver(s3Client, log)
	}

	if a.embeddingClient != nil {
		a.embeddingSvc = service.NewEmbeddingService(a.embeddingClient, a.fileRepo, a.chunkRepo, log)
		a.searchSvc = service.NewSearchService(a.embeddingClient, a.chunkRepo)
		a.summarySvc = service.NewSummaryService(a.searchSvc, completion, a.metricsRepo, a.fileRepo, log)
	}

	a.syncSvc = service.NewSyncService(a.syncRuleRepo, a.fileRepo, a.fileSvc, a.conflictSvc, log)

	return a, nil
}

func (a *app) Close() {
	a.pool.Close()
}

func runMigrations(databaseURL string, log zerolog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	switch {
	case err == migrate.ErrNilVersion:
		log.Info().Msg("migrations: database is up to date (no migrations applied)")
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	default:
		log.Info().Uint("version", version).Msg("migrations: database ready")
	}

	return nil
}

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 30 * time.Second
