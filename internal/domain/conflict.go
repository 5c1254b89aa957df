package domain

import (
	"fmt"
	"time"
)

// ConflictStatus represents the lifecycle state of a conflict record.
type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "pending"
	ConflictStatusResolved ConflictStatus = "resolved"
)

// ResolutionStrategy is the caller-chosen way to settle a conflict.
type ResolutionStrategy string

const (
	ResolutionKeepOriginal   ResolutionStrategy = "keep_original"
	ResolutionAcceptProposed ResolutionStrategy = "accept_proposed"
	ResolutionMerge          ResolutionStrategy = "merge"
	// ResolutionManualReview is only ever a recommendation, never an
	// executable strategy.
	ResolutionManualReview ResolutionStrategy = "manual_review"
)

// Recommendation is the structured analysis of a divergence between the
// stored and proposed content.
type Recommendation struct {
	Summary       string             `json:"summary"`
	Additions     []string           `json:"additions,omitempty"`
	Deletions     []string           `json:"deletions,omitempty"`
	Modifications []string           `json:"modifications,omitempty"`
	Strategy      ResolutionStrategy `json:"recommendation"`
}

// Conflict records a detected divergence between a file's stored content and
// an incoming proposed edit. A conflict is resolved exactly once; resolution
// is terminal.
type Conflict struct {
	ID              string
	FileID          string
	OriginalContent string
	ProposedContent string
	BaseVersion     int64
	Recommendation  *Recommendation
	Status          ConflictStatus
	Strategy        ResolutionStrategy
	ResolvedContent string
	ResolvedBy      string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// IsValidResolutionStrategy reports whether s can be executed by the resolver.
func IsValidResolutionStrategy(s ResolutionStrategy) bool {
	switch s {
	case ResolutionKeepOriginal, ResolutionAcceptProposed, ResolutionMerge:
		return true
	}
	return false
}

// ValidateConflict validates a Conflict instance.
func ValidateConflict(c *Conflict) error {
	if c == nil {
		return fmt.Errorf("conflict cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("conflict ID is required")
	}
	if c.FileID == "" {
		return fmt.Errorf("conflict FileID is required")
	}
	if c.Status != ConflictStatusPending && c.Status != ConflictStatusResolved {
		return fmt.Errorf("conflict Status is invalid: %s", c.Status)
	}
	return nil
}
