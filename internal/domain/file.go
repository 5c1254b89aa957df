package domain

import (
	"fmt"
	"time"
)

// KnowledgeFile represents the mutable "current" state of a knowledge document.
// Files are never physically deleted; deactivation clears the Active flag.
type KnowledgeFile struct {
	ID        string
	FileKey   string
	Title     string
	Category  Category
	Content   string
	Metadata  map[string]any
	Version   int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileVersion is an immutable snapshot of a file's content at a version number.
// Created exactly once per accepted update and never mutated.
type FileVersion struct {
	ID            string
	FileID        string
	VersionNumber int64
	Content       string
	ChangeSummary string
	ChangedBy     string
	CreatedAt     time.Time
}

// NewKnowledgeFile creates a KnowledgeFile at version 1.
func NewKnowledgeFile(id, fileKey, title string, category Category, content string, metadata map[string]any, now time.Time) *KnowledgeFile {
	return &KnowledgeFile{
		ID:        id,
		FileKey:   fileKey,
		Title:     title,
		Category:  category,
		Content:   content,
		Metadata:  metadata,
		Version:   1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateKnowledgeFile validates a KnowledgeFile instance.
func ValidateKnowledgeFile(f *KnowledgeFile) error {
	if f == nil {
		return fmt.Errorf("knowledge file cannot be nil")
	}
	if f.ID == "" {
		return fmt.Errorf("knowledge file ID is required")
	}
	if f.FileKey == "" {
		return fmt.Errorf("knowledge file FileKey is required")
	}
	if f.Title == "" {
		return fmt.Errorf("knowledge file Title is required")
	}
	if f.Content == "" {
		return fmt.Errorf("knowledge file Content is required")
	}
	if !IsValidCategory(f.Category) {
		return fmt.Errorf("knowledge file Category is invalid: %s", f.Category)
	}
	if f.Version <= 0 {
		return fmt.Errorf("knowledge file Version must be greater than 0")
	}
	return nil
}

// ValidateFileVersion validates a FileVersion instance.
func ValidateFileVersion(v *FileVersion) error {
	if v == nil {
		return fmt.Errorf("file version cannot be nil")
	}
	if v.ID == "" {
		return fmt.Errorf("file version ID is required")
	}
	if v.FileID == "" {
		return fmt.Errorf("file version FileID is required")
	}
	if v.VersionNumber <= 0 {
		return fmt.Errorf("file version VersionNumber must be greater than 0")
	}
	return nil
}
