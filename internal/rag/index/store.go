package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
)

// Handle is an immutable, loaded index of one knowledge base.
type Handle interface {
	KnowledgeBaseId() string
	BuildId() string
	Len() int
	Dimension() int
	Chunk(id string) (commonModels.Chunk, bool)
	Chunks() []commonModels.Chunk
	// Similarities scores every vector against query with cosine similarity. Order is unspecified.
	Similarities(ctx context.Context, query []float32) ([]commonModels.ScoredChunk, error)
}

type BuildInfo struct {
	EmbeddingProvider string
	MaxTokens         int
	OverlapTokens     int
}

// Store builds and loads knowledge base indexes. Build replaces the previous index atomically.
type Store interface {
	Build(ctx context.Context, kbId string, chunks []commonModels.Chunk, info BuildInfo) (Handle, error)
	Load(ctx context.Context, kbId string) (Handle, error)
	PutArtifact(ctx context.Context, kbId, name string, data []byte) error
	GetArtifact(ctx context.Context, kbId, name string) ([]byte, error)
}

// Manifest describes one build. It is written last so its presence marks a complete index.
type Manifest struct {
	KnowledgeBaseId   string    `json:"kb_id"`
	BuildId           string    `json:"build_id"`
	Vectors           int       `json:"vectors"`
	Chunks            int       `json:"chunks"`
	Dimension         int       `json:"dimension"`
	EmbeddingProvider string    `json:"embedding_provider"`
	MaxTokens         int       `json:"max_tokens"`
	OverlapTokens     int       `json:"overlap_tokens"`
	BuiltAt           time.Time `json:"built_at"`
}

var (
	errMissingEmbedding = errors.New("chunk has no embedding")
	errDuplicateChunk   = errors.New("duplicate chunk id")
	errDimension        = errors.New("inconsistent vector dimension")
)

// ValidateChunks checks one vector per chunk, one dimension and unique ids. It returns the dimension.
func ValidateChunks(kbId string, chunks []commonModels.Chunk) (int, error) {
	dimension := 0
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return 0, fmt.Errorf("%s: %w", c.ChunkId, errMissingEmbedding)
		}
		if dimension == 0 {
			dimension = len(c.Embedding)
		}
		if len(c.Embedding) != dimension {
			return 0, fmt.Errorf("%s has %d, want %d: %w", c.ChunkId, len(c.Embedding), dimension, errDimension)
		}
		if _, dup := seen[c.ChunkId]; dup {
			return 0, fmt.Errorf("%s: %w", c.ChunkId, errDuplicateChunk)
		}
		seen[c.ChunkId] = struct{}{}
		if c.KnowledgeBaseId != "" && c.KnowledgeBaseId != kbId {
			return 0, fmt.Errorf("%s belongs to %s", c.ChunkId, c.KnowledgeBaseId)
		}
	}
	return dimension, nil
}

// SafeId makes a knowledge base id usable as a single path segment or collection name.
func SafeId(kbId string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_", " ", "_")
	s := r.Replace(strings.TrimSpace(kbId))
	if s == "" || s == "." {
		return "_"
	}
	return s
}

// NewBuildId orders builds by creation time.
func NewBuildId(now time.Time) string {
	return fmt.Sprintf("%d", now.UnixNano())
}
