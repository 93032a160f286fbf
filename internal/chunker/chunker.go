// Package chunker splits cleaned documents into overlapping retrieval
// units and removes duplicate content across the whole corpus.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/documents"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
)

// Defaults for the recursive splitter.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 80
)

// Config configures a Chunker.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Stats summarizes one chunking pass.
type Stats struct {
	Documents  int
	Splits     int
	Duplicates int
	Chunks     int
}

// Chunker splits documents with a recursive character splitter that
// prefers paragraph, then line, then word boundaries before cutting
// characters.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

// New creates a Chunker. Zero config values select the defaults.
func New(cfg Config, logger *zap.Logger) (*Chunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.ChunkSize < 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunking window: size %d overlap %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
		logger: logger,
	}, nil
}

// Chunk splits docs in order and drops every chunk whose case-folded text
// was already produced earlier in the corpus. Metadata.Chunk is the split
// position within the source document counted before duplicates are removed.
func (c *Chunker) Chunk(docs []documents.Document) ([]documents.Chunk, Stats, error) {
	var (
		chunks []documents.Chunk
		stats  = Stats{Documents: len(docs)}
		seen   = make(map[string]struct{})
	)

	for _, d := range docs {
		parts, err := c.splitter.SplitText(d.Text)
		if err != nil {
			return nil, stats, fmt.Errorf("split %s: %w", d.File, err)
		}
		stats.Splits += len(parts)

		for i, p := range parts {
			key := Hash(p)
			if _, dup := seen[key]; dup {
				stats.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			chunks = append(chunks, documents.Chunk{
				Text:     p,
				Metadata: documents.ChunkMetadata{Source: d.File, Chunk: i},
			})
		}
	}

	stats.Chunks = len(chunks)
	c.logger.Debug("chunking complete",
		zap.Int("documents", stats.Documents),
		zap.Int("splits", stats.Splits),
		zap.Int("duplicates", stats.Duplicates),
	)
	return chunks, stats, nil
}

// Hash returns the hex SHA-256 digest of the case-folded text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(text)))
	return hex.EncodeToString(sum[:])
}
