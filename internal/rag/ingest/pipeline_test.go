package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/data/docstore"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/rag/chunker"
	"github.com/akolanti/TenderRAG/internal/rag/embedding"
	"github.com/akolanti/TenderRAG/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/internal/rag/parser"
	"github.com/akolanti/TenderRAG/internal/rag/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockParser struct {
	OnParse func(ctx context.Context, doc commonModels.Document) (parser.Result, error)
}

func (m *MockParser) Parse(ctx context.Context, doc commonModels.Document) (parser.Result, error) {
	return m.OnParse(ctx, doc)
}

// textParser treats the raw bytes as paragraphs separated by blank lines under a "Terms" heading.
// Documents whose bytes start with "ENCRYPTED" fail like a password protected pdf.
func textParser() *MockParser {
	return &MockParser{OnParse: func(_ context.Context, doc commonModels.Document) (parser.Result, error) {
		raw := string(doc.Raw)
		if strings.HasPrefix(raw, "ENCRYPTED") {
			return parser.Result{}, &kbErrors.ParseError{Source: doc.Filename, Err: errors.New("file is encrypted")}
		}
		nodes := []commonModels.StructuralNode{commonModels.Heading(1, "Terms", 1, nil)}
		for _, p := range strings.Split(raw, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				nodes = append(nodes, commonModels.Paragraph(p, 1, []string{"Terms"}))
			}
		}
		if len(nodes) == 1 {
			nodes = nil
		}
		return parser.Result{Nodes: nodes, Strategy: "fake", Pages: 1}, nil
	}}
}

func memSource(name, text string) Source {
	return Source{Name: name, Open: func(context.Context) ([]byte, error) { return []byte(text), nil }}
}

func words(prefix string, n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(w, " ")
}

func newPipeline(t *testing.T, provider embedding.Provider) (*Pipeline, *index.FileStore) {
	store := index.NewFileStore(t.TempDir())
	gateway := embedding.NewGateway(provider, embedding.GatewayOptions{BatchSize: 1, MaxAttempts: 1})
	opts := Options{Workers: 2, Chunking: chunker.Options{MaxTokens: 40, OverlapTokens: 5}}
	return New(textParser(), gateway, store, index.NewKeyedMutex(), opts), store
}

func fiveTenders() []Source {
	return []Source{
		memSource("a.pdf", "The bidder shall deposit EMD of Rs 50,000.\n\n"+words("a", 60)),
		memSource("b.pdf", words("b", 30)),
		memSource("c.pdf", "ENCRYPTED"),
		memSource("d.pdf", words("d", 90)),
		memSource("e.pdf", "Scope of Work: build a plant."),
	}
}

func TestBuild_SkipsEncryptedDocument(t *testing.T) {
	p, store := newPipeline(t, hashEmbedding.New(64))

	result, err := p.Build(context.Background(), "kb", fiveTenders())
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 4)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "c.pdf", result.Skipped[0].Source)
	assert.Equal(t, "ParseError", result.Skipped[0].Kind)
	assert.Contains(t, result.Skipped[0].Reason, "encrypted")
	assert.Contains(t, result.String(), "4 succeeded, 1 skipped")

	h, err := store.Load(context.Background(), "kb")
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, h.Len())
	for _, c := range h.Chunks() {
		assert.Equal(t, "kb", c.KnowledgeBaseId)
		assert.NotEqual(t, "c.pdf", c.Source)
		assert.True(t, strings.HasPrefix(c.SectionHint, c.Source+" | "))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	p1, s1 := newPipeline(t, hashEmbedding.New(64))
	p2, s2 := newPipeline(t, hashEmbedding.New(64))

	_, err := p1.Build(context.Background(), "kb", fiveTenders())
	require.NoError(t, err)
	_, err = p2.Build(context.Background(), "kb", fiveTenders())
	require.NoError(t, err)

	h1, err := s1.Load(context.Background(), "kb")
	require.NoError(t, err)
	h2, err := s2.Load(context.Background(), "kb")
	require.NoError(t, err)
	assert.Equal(t, h1.Chunks(), h2.Chunks())
}

func TestBuild_EmbeddingFailures(t *testing.T) {
	hash := hashEmbedding.New(16)
	provider := embedding.ProviderFunc{ProviderName: "flaky", OnEmbed: func(ctx context.Context, texts []string) ([][]float32, error) {
		if strings.Contains(texts[0], "poison") {
			return nil, errors.New("400 bad input")
		}
		return hash.EmbedBatch(ctx, texts)
	}}
	p, store := newPipeline(t, provider)

	sources := []Source{
		memSource("good.pdf", words("g", 20)),
		memSource("partial.pdf", words("p", 20)+"\n\n"+words("poison", 60)),
		memSource("bad.pdf", words("poison", 20)),
	}
	result, err := p.Build(context.Background(), "kb", sources)
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "bad.pdf", result.Skipped[0].Source)
	assert.Equal(t, "EmbeddingError", result.Skipped[0].Kind)

	require.Len(t, result.Succeeded, 2)
	assert.Zero(t, result.Succeeded[0].FailedChunks)
	assert.Positive(t, result.Succeeded[1].FailedChunks)

	h, err := store.Load(context.Background(), "kb")
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, h.Len())
}

func TestBuild_Failures(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		p, _ := newPipeline(t, hashEmbedding.New(8))
		_, err := p.Build(context.Background(), "kb", nil)
		assert.ErrorIs(t, err, ErrNoDocuments)
	})

	t.Run("every document skipped keeps the old index", func(t *testing.T) {
		p, store := newPipeline(t, hashEmbedding.New(8))
		_, err := p.Build(context.Background(), "kb", []Source{memSource("a.pdf", "hello tender")})
		require.NoError(t, err)

		result, err := p.Build(context.Background(), "kb", []Source{memSource("x.pdf", "ENCRYPTED"), memSource("y.pdf", "")})
		assert.ErrorIs(t, err, ErrNothingIndexed)
		assert.Len(t, result.Skipped, 2)
		assert.Equal(t, reasonNoText, result.Skipped[1].Reason)

		h, err := store.Load(context.Background(), "kb")
		require.NoError(t, err)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("open failure is a skip", func(t *testing.T) {
		p, _ := newPipeline(t, hashEmbedding.New(8))
		broken := Source{Name: "gone.pdf", Open: func(context.Context) ([]byte, error) { return nil, os.ErrNotExist }}
		result, err := p.Build(context.Background(), "kb", []Source{broken, memSource("ok.pdf", "fine")})
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		assert.Contains(t, result.Skipped[0].Reason, "open")
	})

	t.Run("duplicate names", func(t *testing.T) {
		p, _ := newPipeline(t, hashEmbedding.New(8))
		result, err := p.Build(context.Background(), "kb", []Source{memSource("a.pdf", "one"), memSource("a.pdf", "two")})
		require.NoError(t, err)
		assert.Len(t, result.Succeeded, 1)
		assert.Len(t, result.Skipped, 1)
	})

	t.Run("cancelled", func(t *testing.T) {
		p, _ := newPipeline(t, hashEmbedding.New(8))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.Build(ctx, "kb", fiveTenders())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuild_StoresSummarySheet(t *testing.T) {
	p, store := newPipeline(t, hashEmbedding.New(32))
	p.WithSummaries(summary.New(nil))

	_, err := p.Build(context.Background(), "kb", fiveTenders())
	require.NoError(t, err)

	data, err := store.GetArtifact(context.Background(), "kb", config.SummaryArtifact)
	require.NoError(t, err)
	var sheet commonModels.SummarySheet
	require.NoError(t, json.Unmarshal(data, &sheet))
	require.NotNil(t, sheet.EmdAmount)
	assert.Equal(t, "Rs 50,000", *sheet.EmdAmount)
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"b.pdf", "sub/A.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	sources, err := ScanDirectory(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "b.pdf", sources[0].Name)
	assert.Equal(t, "sub/A.PDF", sources[1].Name)

	raw, err := sources[1].Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sub/A.PDF", string(raw))

	_, err = ScanDirectory(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrDirectoryMissing)
}

func TestDocStoreSources(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewLocalStore(t.TempDir())
	require.NoError(t, docs.Put(ctx, "kb", "z.pdf", []byte("z")))
	require.NoError(t, docs.Put(ctx, "kb", "m.pdf", []byte("m")))

	sources, err := DocStoreSources(ctx, docs, "kb")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "m.pdf", sources[0].Name)
	raw, err := sources[1].Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, "z", string(raw))
}
