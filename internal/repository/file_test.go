//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/pagination"
	"github.com/ckr-labs/roofkb/internal/testutil"
)

func newTestFile(key string, category domain.Category) *domain.KnowledgeFile {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.KnowledgeFile{
		ID:        uuid.NewString(),
		FileKey:   key,
		Title:     "Test " + key,
		Category:  category,
		Content:   "Content for " + key,
		Metadata:  map[string]any{"source": "test"},
		Version:   1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFileRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	f := newTestFile("pitch_guide", domain.CategorySOPs)
	require.NoError(t, repo.Create(ctx, f))

	byID, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.FileKey, byID.FileKey)
	assert.Equal(t, f.Category, byID.Category)
	assert.Equal(t, int64(1), byID.Version)
	assert.Equal(t, "test", byID.Metadata["source"])

	byKey, err := repo.GetByKey(ctx, "pitch_guide")
	require.NoError(t, err)
	assert.Equal(t, f.ID, byKey.ID)
}

func TestFileRepository_GetByKey_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	_, err := repo.GetByKey(ctx, "does_not_exist")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileRepository_ListByCategory_ExcludesInactive(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	active := newTestFile("active_sop", domain.CategorySOPs)
	inactive := newTestFile("inactive_sop", domain.CategorySOPs)
	other := newTestFile("labour_rates", domain.CategoryPricing)
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, inactive))
	require.NoError(t, repo.Create(ctx, other))
	require.NoError(t, repo.SetActive(ctx, inactive.ID, false))

	files, err := repo.ListByCategory(ctx, domain.CategorySOPs)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "active_sop", files[0].FileKey)
}

func TestFileRepository_UpdateCAS(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	f := newTestFile("pitch_guide", domain.CategorySOPs)
	require.NoError(t, repo.Create(ctx, f))

	f.Content = "Updated content"
	f.Version = 2
	f.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.UpdateCAS(ctx, f, 1))

	stored, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated content", stored.Content)
	assert.Equal(t, int64(2), stored.Version)

	// A second write against the already-consumed version must lose.
	f.Version = 2
	err = repo.UpdateCAS(ctx, f, 1)
	assert.ErrorIs(t, err, domain.ErrVersionStale)

	// An unknown file surfaces as not found, not stale.
	missing := newTestFile("ghost", domain.CategorySOPs)
	err = repo.UpdateCAS(ctx, missing, 1)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileRepository_SetActive_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	err := repo.SetActive(ctx, uuid.NewString(), false)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileRepository_Versions(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	f := newTestFile("pitch_guide", domain.CategorySOPs)
	require.NoError(t, repo.Create(ctx, f))

	now := time.Now().UTC().Truncate(time.Microsecond)
	v1 := &domain.FileVersion{
		ID:            uuid.NewString(),
		FileID:        f.ID,
		VersionNumber: 1,
		Content:       "Content for pitch_guide",
		ChangeSummary: "Initial version",
		ChangedBy:     "admin",
		CreatedAt:     now,
	}
	v2 := &domain.FileVersion{
		ID:            uuid.NewString(),
		FileID:        f.ID,
		VersionNumber: 2,
		Content:       "Updated content",
		CreatedAt:     now,
	}
	require.NoError(t, repo.CreateVersion(ctx, v1))
	require.NoError(t, repo.CreateVersion(ctx, v2))

	versions, err := repo.GetVersions(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	// Newest first
	assert.Equal(t, int64(2), versions[0].VersionNumber)
	assert.Equal(t, int64(1), versions[1].VersionNumber)
	assert.Equal(t, "Initial version", versions[1].ChangeSummary)
	assert.Equal(t, "admin", versions[1].ChangedBy)
	assert.Empty(t, versions[0].ChangeSummary)

	single, err := repo.GetVersion(ctx, f.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Content for pitch_guide", single.Content)

	_, err = repo.GetVersion(ctx, f.ID, 99)
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestFileRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	for i := 0; i < 5; i++ {
		f := newTestFile("doc_"+uuid.NewString()[:8], domain.CategorySOPs)
		f.UpdatedAt = f.UpdatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, f))
	}

	page1, err := repo.ListWithCursor(ctx, domain.CategorySOPs, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.NextCursor)

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListWithCursor(ctx, domain.CategorySOPs, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)

	// No overlap between pages
	seen := map[string]bool{}
	for _, f := range append(page1.Items, page2.Items...) {
		assert.False(t, seen[f.ID])
		seen[f.ID] = true
	}

	cursor2, err := pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListWithCursor(ctx, domain.CategorySOPs, cursor2, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
}
