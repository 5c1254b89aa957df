package domain

import (
	"fmt"
	"time"
)

// SyncStrategy controls how a sync rule propagates content.
type SyncStrategy string

const (
	// SyncStrategyMirror overwrites the target copy with the source content.
	SyncStrategyMirror SyncStrategy = "mirror"
	// SyncStrategyMerge concatenates source content onto the target after a
	// conflict check; conflicted targets are skipped, never overwritten.
	SyncStrategyMerge SyncStrategy = "merge"
)

// SyncRule is a declarative mapping from a source category to a target
// category executed by the sync engine.
type SyncRule struct {
	ID             string
	Name           string
	SourceCategory Category
	TargetCategory Category
	Strategy       SyncStrategy
	Priority       int
	Active         bool
	LastSync       *time.Time
	CreatedAt      time.Time
}

// ValidateSyncRule validates a SyncRule instance.
func ValidateSyncRule(r *SyncRule) error {
	if r == nil {
		return fmt.Errorf("sync rule cannot be nil")
	}
	if r.ID == "" {
		return fmt.Errorf("sync rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("sync rule Name is required")
	}
	if !IsValidCategory(r.SourceCategory) {
		return fmt.Errorf("sync rule SourceCategory is invalid: %s", r.SourceCategory)
	}
	if !IsValidCategory(r.TargetCategory) {
		return fmt.Errorf("sync rule TargetCategory is invalid: %s", r.TargetCategory)
	}
	if r.SourceCategory == r.TargetCategory {
		return fmt.Errorf("sync rule source and target categories must differ")
	}
	if r.Strategy != SyncStrategyMirror && r.Strategy != SyncStrategyMerge {
		return fmt.Errorf("sync rule Strategy is invalid: %s", r.Strategy)
	}
	return nil
}
