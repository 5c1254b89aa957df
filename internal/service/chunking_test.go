package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	cfg := DefaultChunkConfig()

	t.Run("empty input yields no chunks", func(t *testing.T) {
		assert.Nil(t, ChunkText("", cfg))
		assert.Nil(t, ChunkText("   \n\t  ", cfg))
	})

	t.Run("fragment below the minimum is dropped", func(t *testing.T) {
		assert.Nil(t, ChunkText("too short", cfg))
	})

	t.Run("short document is a single chunk", func(t *testing.T) {
		text := strings.Repeat("Inspect the flashing around every penetration. ", 5)
		chunks := ChunkText(text, cfg)

		require.Len(t, chunks, 1)
		assert.Equal(t, strings.TrimSpace(text), chunks[0])
	})

	t.Run("long document splits into bounded windows", func(t *testing.T) {
		sentence := "Always secure the ladder before climbing onto the roof deck. "
		text := strings.Repeat(sentence, 80)
		chunks := ChunkText(text, cfg)

		require.Greater(t, len(chunks), 1)
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk)), cfg.MaxChars, "chunk %d exceeds window", i)
			assert.GreaterOrEqual(t, len([]rune(chunk)), cfg.MinChars, "chunk %d below minimum", i)
			assert.Contains(t, text, chunk)
		}
	})

	t.Run("boundaries land on sentence breaks", func(t *testing.T) {
		sentence := "Replace any shingle with cracked or curled edges immediately. "
		text := strings.Repeat(sentence, 80)
		chunks := ChunkText(text, cfg)

		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks[:len(chunks)-1] {
			assert.True(t, strings.HasSuffix(chunk, "."), "chunk should end at a sentence break: %q", chunk[len(chunk)-20:])
		}
	})

	t.Run("consecutive chunks overlap", func(t *testing.T) {
		sentence := "Document every deviation from the standard installation procedure. "
		text := strings.Repeat(sentence, 80)
		chunks := ChunkText(text, cfg)

		require.Greater(t, len(chunks), 1)
		// The second chunk starts before the first one ends.
		tail := chunks[0][len(chunks[0])-40:]
		assert.Contains(t, strings.Join(chunks, " "), tail)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		text := strings.Repeat("Check the gutters for granule buildup after each storm. ", 40)
		chunks := ChunkText(text, ChunkConfig{MaxChars: -1, Overlap: -5})

		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, len([]rune(chunk)), DefaultChunkConfig().MaxChars)
		}
	})
}

func TestExtractSection(t *testing.T) {
	t.Run("finds the first heading", func(t *testing.T) {
		chunk := "intro text\n# Safety Checklist\nmore text\n## Harness Use"
		assert.Equal(t, "Safety Checklist", ExtractSection(chunk))
	})

	t.Run("matches up to three heading levels", func(t *testing.T) {
		assert.Equal(t, "Tear-Off", ExtractSection("### Tear-Off\nsteps"))
	})

	t.Run("ignores deeper headings", func(t *testing.T) {
		assert.Equal(t, "", ExtractSection("#### Too Deep\nbody"))
	})

	t.Run("no heading yields empty string", func(t *testing.T) {
		assert.Equal(t, "", ExtractSection("plain paragraph with no structure"))
	})
}
