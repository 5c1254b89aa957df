package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/pagination"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

// FileRepository defines the repository interface for knowledge file persistence.
type FileRepository interface {
	Create(ctx context.Context, f *domain.KnowledgeFile) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeFile, error)
	GetByKey(ctx context.Context, fileKey string) (*domain.KnowledgeFile, error)
	ListByCategory(ctx context.Context, category domain.Category) ([]*domain.KnowledgeFile, error)
	ListWithCursor(ctx context.Context, category domain.Category, cursor *pagination.Cursor, limit int) (*FilePageResult, error)
	// UpdateCAS writes the file's mutable fields only if the stored version
	// still equals expectedVersion. Returns domain.ErrVersionStale otherwise.
	UpdateCAS(ctx context.Context, f *domain.KnowledgeFile, expectedVersion int64) error
	SetActive(ctx context.Context, id string, active bool) error
	CreateVersion(ctx context.Context, v *domain.FileVersion) error
	GetVersions(ctx context.Context, fileID string) ([]*domain.FileVersion, error)
	GetVersion(ctx context.Context, fileID string, versionNumber int64) (*domain.FileVersion, error)
}

// EmbedJobRepository defines the repository interface for embed job persistence.
type EmbedJobRepository interface {
	Create(ctx context.Context, job *domain.EmbedJob) error
}

// ChunkIndexRepository exposes the chunk index maintenance the file store needs.
type ChunkIndexRepository interface {
	CountByDocKey(ctx context.Context, docKey string) (int, error)
	DeactivateByDocKey(ctx context.Context, docKey string) error
}

// ConflictDetector checks a proposed edit against stored content.
type ConflictDetector interface {
	Detect(ctx context.Context, file *domain.KnowledgeFile, proposed string, baseVersion int64) (*domain.Conflict, error)
}

// ConflictWorkflow is the slice of the conflict service the resolution path uses.
type ConflictWorkflow interface {
	ConflictDetector
	GetByID(ctx context.Context, id string) (*domain.Conflict, error)
	MergeContents(ctx context.Context, c *domain.Conflict) (string, error)
	MarkResolved(ctx context.Context, id string, strategy domain.ResolutionStrategy, resolvedContent, resolvedBy string, resolvedAt time.Time) error
}

// VersionArchiver copies version snapshots to object storage.
type VersionArchiver interface {
	ArchiveVersion(ctx context.Context, fileKey string, versionNumber int64, content string) error
}

// FilePageResult is one page of a cursor-paginated file listing.
type FilePageResult struct {
	Items      []*domain.KnowledgeFile
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// FileService implements the versioned file store: a mutable current document
// plus an append-only version history, with a conflict check in front of
// every overwrite.
type FileService struct {
	fileRepo  FileRepository
	jobRepo   EmbedJobRepository
	chunkRepo ChunkIndexRepository
	conflicts ConflictWorkflow
	tx        TxRunner
	archiver  VersionArchiver
	uuidGen   UUIDGenerator
	now       func() time.Time
	log       zerolog.Logger
}

// NewFileService creates a new FileService instance. The tx runner may be
// nil; writes then run without transactional grouping.
func NewFileService(fileRepo FileRepository, jobRepo EmbedJobRepository, chunkRepo ChunkIndexRepository, conflicts ConflictWorkflow, tx TxRunner) *FileService {
	return &FileService{
		fileRepo:  fileRepo,
		jobRepo:   jobRepo,
		chunkRepo: chunkRepo,
		conflicts: conflicts,
		tx:        tx,
		uuidGen:   &DefaultUUIDGenerator{},
		now:       func() time.Time { return time.Now().UTC() },
		log:       zerolog.Nop(),
	}
}

// WithArchiver enables best-effort snapshot archival to object storage.
func (s *FileService) WithArchiver(a VersionArchiver, log zerolog.Logger) *FileService {
	s.archiver = a
	s.log = log
	return s
}

// WithUUIDGen overrides the UUID generator, for tests.
func (s *FileService) WithUUIDGen(gen UUIDGenerator) *FileService {
	s.uuidGen = gen
	return s
}

// WithClock overrides the clock, for tests.
func (s *FileService) WithClock(now func() time.Time) *FileService {
	s.now = now
	return s
}

// CreateFileInput represents the input for creating a knowledge file.
type CreateFileInput struct {
	FileKey   string // optional; generated when empty
	Title     string
	Category  domain.Category
	Content   string
	Metadata  map[string]any
	ChangedBy string
}

// UpdateFileInput represents the input for updating a knowledge file.
// BaseVersion is the version the caller read; a stale base is rejected with a
// conflict rather than silently overwriting a concurrent writer's snapshot.
type UpdateFileInput struct {
	FileID        string
	BaseVersion   int64
	Title         string
	Category      domain.Category
	Content       string
	Metadata      map[string]any
	ChangeSummary string
	ChangedBy     string
}

// UpdateResult is the outcome of an update: either a new version was
// committed, or a conflict requires resolution before retrying.
type UpdateResult struct {
	File     *domain.KnowledgeFile
	Version  *domain.FileVersion
	Conflict *domain.Conflict
}

// FileDetail is a file plus its version history (newest first) and the
// number of active chunks indexed for it.
type FileDetail struct {
	File       *domain.KnowledgeFile
	Versions   []*domain.FileVersion
	ChunkCount int
}

// ListFilesInput filters and paginates the file listing.
type ListFilesInput struct {
	Category domain.Category
	Cursor   string
	Limit    int
}

// ListFilesOutput is one page of files.
type ListFilesOutput struct {
	Items   []*domain.KnowledgeFile
	Cursor  string
	HasMore bool
}

// Create creates a knowledge file at version 1, snapshots the initial
// version, and queues an embedding job.
func (s *FileService) Create(ctx context.Context, input CreateFileInput) (*domain.KnowledgeFile, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.Create", telemetry.SpanAttributes{
		Category:  string(input.Category),
		Operation: "create",
	})
	defer span.End()

	now := s.now()
	fileKey := input.FileKey
	if fileKey == "" {
		fileKey = fmt.Sprintf("KF_%d", now.UnixMilli())
	}

	if existing, err := s.fileRepo.GetByKey(ctx, fileKey); err == nil && existing != nil {
		return nil, domain.ErrFileAlreadyExists
	} else if err != nil && err != domain.ErrFileNotFound {
		return nil, err
	}

	file := domain.NewKnowledgeFile(s.uuidGen.NewString(), fileKey, input.Title, input.Category, input.Content, input.Metadata, now)
	if err := domain.ValidateKnowledgeFile(file); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge file", err)
	}

	version := &domain.FileVersion{
		ID:            s.uuidGen.NewString(),
		FileID:        file.ID,
		VersionNumber: 1,
		Content:       input.Content,
		ChangeSummary: "Initial version",
		ChangedBy:     input.ChangedBy,
		CreatedAt:     now,
	}

	err := s.withWrites(ctx, func(files FileRepository, jobs EmbedJobRepository) error {
		if err := files.Create(ctx, file); err != nil {
			return err
		}
		if err := files.CreateVersion(ctx, version); err != nil {
			return err
		}
		return jobs.Create(ctx, s.newEmbedJob(file.ID, now))
	})
	if err != nil {
		return nil, err
	}

	s.archive(ctx, file.FileKey, version)
	return file, nil
}

// archive copies a snapshot to object storage. Failures are logged, never
// surfaced; the database row is the source of truth.
func (s *FileService) archive(ctx context.Context, fileKey string, v *domain.FileVersion) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.ArchiveVersion(ctx, fileKey, v.VersionNumber, v.Content); err != nil {
		s.log.Warn().Err(err).
			Str("file_key", fileKey).
			Int64("version", v.VersionNumber).
			Msg("version archive failed")
	}
}

// withWrites runs fn against transaction-scoped repositories when a tx
// runner is configured, or the plain repositories otherwise.
func (s *FileService) withWrites(ctx context.Context, fn func(files FileRepository, jobs EmbedJobRepository) error) error {
	if s.tx == nil {
		return fn(s.fileRepo, s.jobRepo)
	}
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		return fn(repos.Files(), repos.EmbedJobs())
	})
}

// Get retrieves a file by id or file key, with version history and chunk count.
func (s *FileService) Get(ctx context.Context, idOrKey string) (*FileDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.Get", telemetry.SpanAttributes{
		FileID:    idOrKey,
		Operation: "get",
	})
	defer span.End()

	file, err := s.fileRepo.GetByID(ctx, idOrKey)
	if err == domain.ErrFileNotFound {
		file, err = s.fileRepo.GetByKey(ctx, idOrKey)
	}
	if err != nil {
		return nil, err
	}

	versions, err := s.fileRepo.GetVersions(ctx, file.ID)
	if err != nil {
		return nil, err
	}

	chunkCount := 0
	if s.chunkRepo != nil {
		chunkCount, _ = s.chunkRepo.CountByDocKey(ctx, file.FileKey)
	}

	return &FileDetail{
		File:       file,
		Versions:   versions,
		ChunkCount: chunkCount,
	}, nil
}

// List retrieves files, optionally filtered by category, newest first.
func (s *FileService) List(ctx context.Context, input ListFilesInput) (*ListFilesOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.List", telemetry.SpanAttributes{
		Category:  string(input.Category),
		Operation: "list",
	})
	defer span.End()

	if input.Category != "" && !domain.IsValidCategory(input.Category) {
		return nil, domain.ErrInvalidCategory
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.fileRepo.ListWithCursor(ctx, input.Category, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListFilesOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// GetVersions returns a file's snapshot history, newest first.
func (s *FileService) GetVersions(ctx context.Context, fileID string) ([]*domain.FileVersion, error) {
	if _, err := s.fileRepo.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.fileRepo.GetVersions(ctx, fileID)
}

// GetVersion returns a single immutable snapshot by version number.
func (s *FileService) GetVersion(ctx context.Context, fileID string, versionNumber int64) (*domain.FileVersion, error) {
	if _, err := s.fileRepo.GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.fileRepo.GetVersion(ctx, fileID, versionNumber)
}

// Update applies an edit through the conflict workflow. A stale base version
// or a material content divergence yields a conflict outcome instead of a
// write; identical or trivially-different content commits directly.
func (s *FileService) Update(ctx context.Context, input UpdateFileInput) (*UpdateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.Update", telemetry.SpanAttributes{
		FileID:    input.FileID,
		Operation: "update",
	})
	defer span.End()

	if input.Content == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "content is required")
	}

	file, err := s.fileRepo.GetByID(ctx, input.FileID)
	if err != nil {
		return nil, err
	}
	if !file.Active {
		return nil, domain.ErrFileInactive
	}

	baseVersion := input.BaseVersion
	if baseVersion == 0 {
		baseVersion = file.Version
	}

	conflict, err := s.conflicts.Detect(ctx, file, input.Content, baseVersion)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if conflict != nil {
		return &UpdateResult{File: file, Conflict: conflict}, nil
	}

	// No conflict to record. The commit below still compare-and-swaps on
	// the base version, so a write that landed since the caller's read
	// surfaces as ErrVersionStale instead of being clobbered.
	file.Title = pickString(input.Title, file.Title)
	if input.Category != "" {
		if !domain.IsValidCategory(input.Category) {
			return nil, domain.ErrInvalidCategory
		}
		file.Category = input.Category
	}
	if input.Metadata != nil {
		file.Metadata = input.Metadata
	}

	version, err := s.commit(ctx, file, input.Content, pickString(input.ChangeSummary, "Updated content"), input.ChangedBy, baseVersion)
	if err != nil {
		return nil, err
	}

	return &UpdateResult{File: file, Version: version}, nil
}

// commit snapshots the new content as the next version and swaps the current
// content, guarded by a compare-and-swap on the version the caller read.
func (s *FileService) commit(ctx context.Context, file *domain.KnowledgeFile, content, changeSummary, changedBy string, expectedVersion int64) (*domain.FileVersion, error) {
	now := s.now()
	file.Content = content
	file.Version = expectedVersion + 1
	file.UpdatedAt = now

	version := &domain.FileVersion{
		ID:            s.uuidGen.NewString(),
		FileID:        file.ID,
		VersionNumber: file.Version,
		Content:       content,
		ChangeSummary: changeSummary,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}

	err := s.withWrites(ctx, func(files FileRepository, jobs EmbedJobRepository) error {
		if err := files.UpdateCAS(ctx, file, expectedVersion); err != nil {
			return err
		}
		if err := files.CreateVersion(ctx, version); err != nil {
			return err
		}
		return jobs.Create(ctx, s.newEmbedJob(file.ID, now))
	})
	if err != nil {
		return nil, err
	}

	s.archive(ctx, file.FileKey, version)
	return version, nil
}

// ResolveConflictInput selects a terminal strategy for a pending conflict.
type ResolveConflictInput struct {
	ConflictID string
	Strategy   domain.ResolutionStrategy
	ResolvedBy string
}

// ResolveConflict settles a pending conflict. keep_original leaves the stored
// content and version untouched; accept_proposed and merge commit new content
// through the versioned store, bypassing further conflict checks. Resolution
// is terminal: a resolved conflict cannot be resolved again.
func (s *FileService) ResolveConflict(ctx context.Context, input ResolveConflictInput) (*domain.Conflict, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.ResolveConflict", telemetry.SpanAttributes{
		ConflictID: input.ConflictID,
		Operation:  "resolve",
	})
	defer span.End()

	if !domain.IsValidResolutionStrategy(input.Strategy) {
		return nil, domain.ErrInvalidResolutionStrategy
	}

	conflict, err := s.conflicts.GetByID(ctx, input.ConflictID)
	if err != nil {
		return nil, err
	}
	if conflict.Status != domain.ConflictStatusPending {
		return nil, domain.ErrConflictResolved
	}

	finalContent := conflict.OriginalContent
	switch input.Strategy {
	case domain.ResolutionAcceptProposed:
		finalContent = conflict.ProposedContent
	case domain.ResolutionMerge:
		finalContent, err = s.conflicts.MergeContents(ctx, conflict)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	if input.Strategy != domain.ResolutionKeepOriginal {
		file, err := s.fileRepo.GetByID(ctx, conflict.FileID)
		if err != nil {
			return nil, err
		}
		summary := fmt.Sprintf("Conflict resolved: %s", input.Strategy)
		if _, err := s.commit(ctx, file, finalContent, summary, input.ResolvedBy, file.Version); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := s.conflicts.MarkResolved(ctx, conflict.ID, input.Strategy, finalContent, input.ResolvedBy, now); err != nil {
		return nil, err
	}

	conflict.Status = domain.ConflictStatusResolved
	conflict.Strategy = input.Strategy
	conflict.ResolvedContent = finalContent
	conflict.ResolvedBy = input.ResolvedBy
	conflict.ResolvedAt = &now
	return conflict, nil
}

// Overwrite writes content without conflict detection. Reserved for the sync
// engine's mirror strategy, which by definition replaces the target copy.
func (s *FileService) Overwrite(ctx context.Context, fileID, content, changeSummary, changedBy string) (*domain.KnowledgeFile, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !file.Active {
		return nil, domain.ErrFileInactive
	}
	if _, err := s.commit(ctx, file, content, changeSummary, changedBy, file.Version); err != nil {
		return nil, err
	}
	return file, nil
}

// Deactivate soft-deletes a file and retires its chunks from retrieval.
// Files are never physically deleted.
func (s *FileService) Deactivate(ctx context.Context, id string) (*domain.KnowledgeFile, error) {
	ctx, span := telemetry.StartSpan(ctx, "FileService.Deactivate", telemetry.SpanAttributes{
		FileID:    id,
		Operation: "deactivate",
	})
	defer span.End()

	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.fileRepo.SetActive(ctx, file.ID, false); err != nil {
		return nil, err
	}
	if s.chunkRepo != nil {
		if err := s.chunkRepo.DeactivateByDocKey(ctx, file.FileKey); err != nil {
			return nil, err
		}
	}

	file.Active = false
	return file, nil
}

// ReEmbed queues a fresh chunk-and-embed pass for a file.
func (s *FileService) ReEmbed(ctx context.Context, id string) error {
	file, err := s.fileRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !file.Active {
		return domain.ErrFileInactive
	}
	return s.jobRepo.Create(ctx, s.newEmbedJob(file.ID, s.now()))
}

func (s *FileService) newEmbedJob(fileID string, now time.Time) *domain.EmbedJob {
	return &domain.EmbedJob{
		ID:        s.uuidGen.NewString(),
		FileID:    fileID,
		Status:    domain.EmbedJobStatusPending,
		CreatedAt: now,
	}
}

func pickString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
