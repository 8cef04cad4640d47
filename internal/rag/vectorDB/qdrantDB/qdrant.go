package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const upsertBatch = 256

// Store keeps one collection per build and points the kb alias at the newest one.
// The alias update is a single request, so readers switch atomically.
type Store struct {
	client    *qdrant.Client
	artifacts string
	swaps     *index.KeyedMutex
	logger    *logger_i.Logger
	now       func() time.Time

	mu      sync.Mutex
	handles map[string]*handle
}

func NewQdrantStore(ctx context.Context, s config.IndexSettings) (*Store, error) {
	logger := logger_i.NewLogger("Qdrant")
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     s.QdrantHost,
		Port:     s.QdrantPort,
		APIKey:   s.QdrantKey,
		UseTLS:   s.QdrantTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	go closeQdrant(ctx, client, logger)

	root := s.Root
	if root == "" {
		root = config.DefaultIndexRoot
	}
	return &Store{
		client:    client,
		artifacts: root,
		swaps:     index.NewKeyedMutex(),
		logger:    logger,
		now:       time.Now,
		handles:   make(map[string]*handle),
	}, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client, logger *logger_i.Logger) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

func aliasName(kbId string) string {
	return "kb_" + index.SafeId(kbId)
}

func collectionPrefix(kbId string) string {
	return aliasName(kbId) + "__"
}

func collectionFor(kbId, buildId string) string {
	return collectionPrefix(kbId) + buildId
}

// buildIdOf returns the build id of a collection that belongs to kbId.
func buildIdOf(kbId, collection string) (string, bool) {
	rest, ok := strings.CutPrefix(collection, collectionPrefix(kbId))
	if !ok || rest == "" {
		return "", false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return rest, true
}

// pointId is stable per kb and chunk so rebuilds upsert the same ids.
func pointId(kbId, chunkId string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(kbId+"/"+chunkId)).String()
}

func chunkPayload(c commonModels.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":       c.ChunkId,
		"document_id":    c.DocumentId,
		"source":         c.Source,
		"kb_id":          c.KnowledgeBaseId,
		"content":        c.Text,
		"section_hint":   c.SectionHint,
		"page":           int64(c.Page),
		"sequence":       int64(c.Sequence),
		"overlap_tokens": int64(c.OverlapTokens),
	}
}

func chunkFromPayload(p map[string]*qdrant.Value) commonModels.Chunk {
	return commonModels.Chunk{
		ChunkId:         p["chunk_id"].GetStringValue(),
		DocumentId:      p["document_id"].GetStringValue(),
		Source:          p["source"].GetStringValue(),
		KnowledgeBaseId: p["kb_id"].GetStringValue(),
		Text:            p["content"].GetStringValue(),
		SectionHint:     p["section_hint"].GetStringValue(),
		Page:            int(p["page"].GetIntegerValue()),
		Sequence:        int(p["sequence"].GetIntegerValue()),
		OverlapTokens:   int(p["overlap_tokens"].GetIntegerValue()),
	}
}

func (s *Store) Build(ctx context.Context, kbId string, chunks []commonModels.Chunk, info index.BuildInfo) (index.Handle, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	log := s.logger.FromContext(ctx).With("kbId", kbId)
	indexErr := func(op string, err error) error {
		log.Error("qdrant build failed", "op", op, "error", err)
		return &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: op, Err: err}
	}

	dimension, err := index.ValidateChunks(kbId, chunks)
	if err != nil {
		return nil, indexErr("validate", err)
	}
	stored := make([]commonModels.Chunk, len(chunks))
	for i, c := range chunks {
		c.KnowledgeBaseId = kbId
		stored[i] = c
	}

	buildId := index.NewBuildId(s.now())
	name := collectionFor(kbId, buildId)
	size := uint64(max(dimension, 1))
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, indexErr("create_collection", err)
	}
	committed := false
	defer func() {
		if !committed {
			if derr := s.client.DeleteCollection(context.Background(), name); derr != nil {
				log.Warn("could not drop staged collection", "collection", name, "error", derr)
			}
		}
	}()

	if err := s.upsert(ctx, kbId, name, stored); err != nil {
		return nil, indexErr("upsert", err)
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return nil, indexErr("verify", err)
	}
	if int(count) != len(stored) {
		return nil, indexErr("verify", fmt.Errorf("collection has %d points, want %d", count, len(stored)))
	}

	unlock, err := s.swaps.Lock(ctx, kbId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	previous, err := s.resolveAlias(ctx, kbId)
	if err != nil {
		return nil, indexErr("swap", err)
	}
	ops := make([]*qdrant.AliasOperations, 0, 2)
	if previous != "" {
		ops = append(ops, qdrant.NewAliasDelete(aliasName(kbId)))
	}
	ops = append(ops, qdrant.NewAliasCreate(aliasName(kbId), name))
	if err := s.client.UpdateAliases(ctx, ops); err != nil {
		return nil, indexErr("swap", err)
	}
	committed = true

	h := newHandle(s.client, kbId, buildId, name, dimension, stored)
	s.mu.Lock()
	s.handles[kbId] = h
	s.mu.Unlock()

	s.dropStale(ctx, kbId, name, previous)
	log.Info("qdrant alias swapped", "collection", name, "points", count)
	return h, nil
}

func (s *Store) upsert(ctx context.Context, kbId, name string, chunks []commonModels.Chunk) error {
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, c := range chunks[start:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(pointId(kbId, c.ChunkId)),
				Vectors: qdrant.NewVectors(c.Embedding...),
				Payload: qdrant.NewValueMap(chunkPayload(c)),
			})
		}
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert failed: %w", err)
		}
	}
	return nil
}

// dropStale removes older builds but keeps the one just replaced for in-flight readers.
func (s *Store) dropStale(ctx context.Context, kbId, current, previous string) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		s.logger.Warn("could not list collections", "error", err)
		return
	}
	for _, n := range names {
		if n == current || n == previous {
			continue
		}
		if _, ok := buildIdOf(kbId, n); !ok {
			continue
		}
		if err := s.client.DeleteCollection(ctx, n); err != nil {
			s.logger.Warn("could not drop old collection", "collection", n, "error", err)
		}
	}
}

func (s *Store) resolveAlias(ctx context.Context, kbId string) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", err
	}
	want := aliasName(kbId)
	for _, a := range aliases {
		if a.GetAliasName() == want {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (s *Store) Load(ctx context.Context, kbId string) (index.Handle, error) {
	name, err := s.resolveAlias(ctx, kbId)
	if err != nil {
		return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: err}
	}
	if name == "" {
		return nil, kbErrors.KnowledgeBaseNotFound(kbId)
	}

	s.mu.Lock()
	cached, ok := s.handles[kbId]
	s.mu.Unlock()
	if ok && cached.collection == name {
		return cached, nil
	}

	buildId, _ := buildIdOf(kbId, name)
	chunks, dimension, err := s.scrollAll(ctx, name)
	if err != nil {
		return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: err}
	}
	h := newHandle(s.client, kbId, buildId, name, dimension, chunks)
	s.mu.Lock()
	s.handles[kbId] = h
	s.mu.Unlock()
	return h, nil
}

// scrollAll reads every payload of a collection. The offset point is inclusive, so later pages skip it.
func (s *Store) scrollAll(ctx context.Context, name string) ([]commonModels.Chunk, int, error) {
	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	dimension := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())

	var chunks []commonModels.Chunk
	var offset *qdrant.PointId
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(config.QdrantScroll)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, 0, err
		}
		fresh := points
		if offset != nil && len(fresh) > 0 && fresh[0].GetId().GetUuid() == offset.GetUuid() {
			fresh = fresh[1:]
		}
		for _, p := range fresh {
			chunks = append(chunks, chunkFromPayload(p.GetPayload()))
		}
		if len(fresh) == 0 || len(points) < config.QdrantScroll {
			break
		}
		offset = points[len(points)-1].GetId()
	}
	if len(chunks) == 0 {
		dimension = 0
	}
	return chunks, dimension, nil
}

func (s *Store) artifactPath(kbId, name string) string {
	return filepath.Join(s.artifacts, index.SafeId(kbId), filepath.Base(name))
}

func (s *Store) PutArtifact(ctx context.Context, kbId, name string, data []byte) error {
	path := s.artifactPath(kbId, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) GetArtifact(ctx context.Context, kbId, name string) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(kbId, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &kbErrors.NotFoundError{Kind: "artifact " + name, Id: kbId}
	}
	return data, err
}

// handle runs exact searches against one concrete collection, not the alias.
type handle struct {
	client     *qdrant.Client
	kbId       string
	buildId    string
	collection string
	dimension  int
	chunks     []commonModels.Chunk
	byId       map[string]int
}

func newHandle(client *qdrant.Client, kbId, buildId, collection string, dimension int, chunks []commonModels.Chunk) *handle {
	sorted := make([]commonModels.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkId < sorted[j].ChunkId })
	byId := make(map[string]int, len(sorted))
	for i := range sorted {
		sorted[i].Embedding = nil
		byId[sorted[i].ChunkId] = i
	}
	return &handle{client: client, kbId: kbId, buildId: buildId, collection: collection, dimension: dimension, chunks: sorted, byId: byId}
}

func (h *handle) KnowledgeBaseId() string { return h.kbId }
func (h *handle) BuildId() string         { return h.buildId }
func (h *handle) Len() int                { return len(h.chunks) }
func (h *handle) Dimension() int          { return h.dimension }

func (h *handle) Chunk(id string) (commonModels.Chunk, bool) {
	i, ok := h.byId[id]
	if !ok {
		return commonModels.Chunk{}, false
	}
	return h.chunks[i], true
}

func (h *handle) Chunks() []commonModels.Chunk {
	return append([]commonModels.Chunk(nil), h.chunks...)
}

func (h *handle) Similarities(ctx context.Context, query []float32) ([]commonModels.ScoredChunk, error) {
	if len(h.chunks) == 0 {
		return nil, nil
	}
	if len(query) != h.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), h.dimension)
	}
	result, err := h.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: h.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(len(h.chunks))),
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		WithPayload:    qdrant.NewWithPayloadInclude("chunk_id"),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	out := make([]commonModels.ScoredChunk, 0, len(result))
	for _, hit := range result {
		c, ok := h.Chunk(hit.GetPayload()["chunk_id"].GetStringValue())
		if !ok {
			return nil, fmt.Errorf("point %s has no chunk metadata", hit.GetId().GetUuid())
		}
		out = append(out, commonModels.ScoredChunk{Chunk: c, Score: hit.GetScore()})
	}
	return out, nil
}
