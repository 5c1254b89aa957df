package service

import (
	"regexp"
	"strings"
)

// ChunkConfig controls how document content is split for embedding.
type ChunkConfig struct {
	// MaxChars is the hard window size; every chunk except possibly the
	// last stays within it.
	MaxChars int
	// Overlap is how far each chunk reaches back into the previous one.
	Overlap int
	// MinChars drops trailing fragments too short to be useful.
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		Overlap:  150,
		MinChars: 50,
	}
}

var sectionHeadingRe = regexp.MustCompile(`(?m)^#{1,3}\s+(.+)$`)

// ChunkText splits text into overlapping windows. Boundaries prefer the last
// sentence or paragraph break (`.` or newline) before the hard cutoff when it
// falls past the halfway point of the window. Empty input yields no chunks.
func ChunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxChars {
		cfg = DefaultChunkConfig()
	}

	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		if len(runes) < cfg.MinChars {
			return nil
		}
		return []string{clean}
	}

	chunks := make([]string, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		} else {
			if cut := breakPoint(runes, start, end); cut > start+cfg.MaxChars/2 {
				end = cut + 1
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) >= cfg.MinChars {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// breakPoint finds the last sentence or paragraph break in runes[start:end].
// Returns -1 when none exists.
func breakPoint(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// ExtractSection returns the first markdown heading found in the chunk, if any.
func ExtractSection(chunk string) string {
	m := sectionHeadingRe.FindStringSubmatch(chunk)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
