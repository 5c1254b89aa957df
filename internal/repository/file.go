package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/pagination"
	"github.com/ckr-labs/roofkb/internal/service"
)

const fileColumns = `id, file_key, title, category, content, metadata, version, active, created_at, updated_at`

type FileRepository struct {
	db dbtx
}

func NewFileRepository(pool *pgxpool.Pool) *FileRepository {
	return &FileRepository{db: pool}
}

func NewFileRepositoryWithTx(tx pgx.Tx) *FileRepository {
	return &FileRepository{db: tx}
}

func (r *FileRepository) Create(ctx context.Context, f *domain.KnowledgeFile) error {
	meta, err := marshalMetadata(f.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_files (id, file_key, title, category, content, metadata, version, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.FileKey, f.Title, f.Category, f.Content, meta, f.Version, f.Active, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeFile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM knowledge_files WHERE id = $1`,
		id,
	)
	return scanFile(row)
}

func (r *FileRepository) GetByKey(ctx context.Context, fileKey string) (*domain.KnowledgeFile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM knowledge_files WHERE file_key = $1`,
		fileKey,
	)
	return scanFile(row)
}

func (r *FileRepository) ListByCategory(ctx context.Context, category domain.Category) ([]*domain.KnowledgeFile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+` FROM knowledge_files
		 WHERE category = $1 AND active = TRUE
		 ORDER BY updated_at DESC`,
		category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFileRows(rows)
}

func (r *FileRepository) ListWithCursor(ctx context.Context, category domain.Category, cursor *pagination.Cursor, limit int) (*service.FilePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + fileColumns + ` FROM knowledge_files WHERE active = TRUE`
	args := []any{}
	arg := 1

	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
		arg++
	}
	if cursor != nil {
		query += ` AND (updated_at, id) < ($` + strconv.Itoa(arg) + `, $` + strconv.Itoa(arg+1) + `)`
		args = append(args, cursor.Timestamp, cursor.LastID)
		arg += 2
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT $` + strconv.Itoa(arg)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanFileRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.FilePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateCAS writes the file only if the stored version still matches
// expectedVersion. Zero rows affected means a concurrent writer won.
func (r *FileRepository) UpdateCAS(ctx context.Context, f *domain.KnowledgeFile, expectedVersion int64) error {
	meta, err := marshalMetadata(f.Metadata)
	if err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_files
		 SET title = $1, category = $2, content = $3, metadata = $4, version = $5, updated_at = $6
		 WHERE id = $7 AND version = $8`,
		f.Title, f.Category, f.Content, meta, f.Version, f.UpdatedAt, f.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, f.ID); err != nil {
			return err
		}
		return domain.ErrVersionStale
	}
	return nil
}

func (r *FileRepository) SetActive(ctx context.Context, id string, active bool) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_files SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

func (r *FileRepository) CreateVersion(ctx context.Context, v *domain.FileVersion) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_file_versions (id, file_id, version_number, content, change_summary, changed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.FileID, v.VersionNumber, v.Content, nullableString(v.ChangeSummary), nullableString(v.ChangedBy), v.CreatedAt,
	)
	return err
}

func (r *FileRepository) GetVersions(ctx context.Context, fileID string) ([]*domain.FileVersion, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, file_id, version_number, content, change_summary, changed_by, created_at
		 FROM knowledge_file_versions WHERE file_id = $1 ORDER BY version_number DESC`,
		fileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*domain.FileVersion
	for rows.Next() {
		var v domain.FileVersion
		var changeSummary, changedBy *string
		if err := rows.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.Content, &changeSummary, &changedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		if changeSummary != nil {
			v.ChangeSummary = *changeSummary
		}
		if changedBy != nil {
			v.ChangedBy = *changedBy
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func (r *FileRepository) GetVersion(ctx context.Context, fileID string, versionNumber int64) (*domain.FileVersion, error) {
	var v domain.FileVersion
	var changeSummary, changedBy *string
	err := r.db.QueryRow(ctx,
		`SELECT id, file_id, version_number, content, change_summary, changed_by, created_at
		 FROM knowledge_file_versions WHERE file_id = $1 AND version_number = $2`,
		fileID, versionNumber,
	).Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.Content, &changeSummary, &changedBy, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, err
	}
	if changeSummary != nil {
		v.ChangeSummary = *changeSummary
	}
	if changedBy != nil {
		v.ChangedBy = *changedBy
	}
	return &v, nil
}

func scanFile(row pgx.Row) (*domain.KnowledgeFile, error) {
	var f domain.KnowledgeFile
	var meta []byte
	err := row.Scan(&f.ID, &f.FileKey, &f.Title, &f.Category, &f.Content, &meta, &f.Version, &f.Active, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	if err := unmarshalMetadata(meta, &f.Metadata); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFileRows(rows pgx.Rows) ([]*domain.KnowledgeFile, error) {
	var results []*domain.KnowledgeFile
	for rows.Next() {
		var f domain.KnowledgeFile
		var meta []byte
		if err := rows.Scan(&f.ID, &f.FileKey, &f.Title, &f.Category, &f.Content, &meta, &f.Version, &f.Active, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalMetadata(meta, &f.Metadata); err != nil {
			return nil, err
		}
		results = append(results, &f)
	}
	return results, rows.Err()
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(raw []byte, out *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
