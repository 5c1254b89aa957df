package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKnowledgeFile(t *testing.T) {
	now := time.Now()
	file := NewKnowledgeFile(
		"f1",
		"pitch_guide",
		"Pitch Guide",
		CategorySOPs,
		"# Minimum Slopes",
		map[string]any{"source": "import"},
		now,
	)

	assert.Equal(t, "f1", file.ID)
	assert.Equal(t, "pitch_guide", file.FileKey)
	assert.Equal(t, "Pitch Guide", file.Title)
	assert.Equal(t, CategorySOPs, file.Category)
	assert.Equal(t, "# Minimum Slopes", file.Content)
	assert.Equal(t, int64(1), file.Version)
	assert.True(t, file.Active)
	assert.Equal(t, now, file.CreatedAt)
	assert.Equal(t, now, file.UpdatedAt)
}

func TestValidateKnowledgeFile(t *testing.T) {
	now := time.Now()

	valid := func() *KnowledgeFile {
		return &KnowledgeFile{
			ID:        "f1",
			FileKey:   "pitch_guide",
			Title:     "Pitch Guide",
			Category:  CategorySOPs,
			Content:   "# Minimum Slopes",
			Version:   1,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*KnowledgeFile)
		wantErr bool
		errMsg  string
	}{
		{"valid file", func(f *KnowledgeFile) {}, false, ""},
		{"missing ID", func(f *KnowledgeFile) { f.ID = "" }, true, "ID"},
		{"missing FileKey", func(f *KnowledgeFile) { f.FileKey = "" }, true, "FileKey"},
		{"missing Title", func(f *KnowledgeFile) { f.Title = "" }, true, "Title"},
		{"missing Content", func(f *KnowledgeFile) { f.Content = "" }, true, "Content"},
		{"invalid Category", func(f *KnowledgeFile) { f.Category = Category("invalid") }, true, "Category"},
		{"zero Version", func(f *KnowledgeFile) { f.Version = 0 }, true, "Version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)
			err := ValidateKnowledgeFile(f)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("nil file", func(t *testing.T) {
		assert.Error(t, ValidateKnowledgeFile(nil))
	})
}

func TestValidateFileVersion(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		version *FileVersion
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid version",
			version: &FileVersion{
				ID:            "v1",
				FileID:        "f1",
				VersionNumber: 1,
				Content:       "# Minimum Slopes",
				CreatedAt:     now,
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			version: &FileVersion{
				FileID:        "f1",
				VersionNumber: 1,
				CreatedAt:     now,
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing FileID",
			version: &FileVersion{
				ID:            "v1",
				VersionNumber: 1,
				CreatedAt:     now,
			},
			wantErr: true,
			errMsg:  "FileID",
		},
		{
			name: "invalid VersionNumber",
			version: &FileVersion{
				ID:            "v1",
				FileID:        "f1",
				VersionNumber: 0,
				CreatedAt:     now,
			},
			wantErr: true,
			errMsg:  "VersionNumber",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileVersion(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
