package domain

import "time"

// EmbedJobStatus represents the status of an embedding job.
type EmbedJobStatus string

const (
	EmbedJobStatusPending    EmbedJobStatus = "pending"
	EmbedJobStatusProcessing EmbedJobStatus = "processing"
	EmbedJobStatusCompleted  EmbedJobStatus = "completed"
	EmbedJobStatusFailed     EmbedJobStatus = "failed"
)

// EmbedJob queues a file for (re-)chunking and embedding by the background
// worker.
type EmbedJob struct {
	ID          string
	FileID      string
	Status      EmbedJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// IsValidEmbedJobStatus checks if an EmbedJobStatus is valid.
func IsValidEmbedJobStatus(s EmbedJobStatus) bool {
	switch s {
	case EmbedJobStatusPending, EmbedJobStatusProcessing, EmbedJobStatusCompleted, EmbedJobStatusFailed:
		return true
	}
	return false
}
