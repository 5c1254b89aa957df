package domain

import "time"

// Chunk is a bounded slice of a document's content, embedded independently
// for retrieval. Chunks for one document carry strictly increasing indices
// starting at 0; consecutive chunks overlap by the chunker's overlap length.
type Chunk struct {
	ID         string
	DocKey     string
	Title      string
	Category   Category
	Section    string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]any
	Active     bool
	CreatedAt  time.Time
}

// ChunkMatch is a retrieval hit: a chunk plus its similarity to the query
// and a human-readable citation.
type ChunkMatch struct {
	ChunkID    string
	DocKey     string
	Title      string
	Category   Category
	Section    string
	ChunkIndex int
	Content    string
	Similarity float32
	Citation   string
}
