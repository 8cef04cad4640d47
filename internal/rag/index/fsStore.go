package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/commonModels"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/metrics"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/philippgille/chromem-go"
)

// loadAttempts bounds re-reads when the build a reader resolved is pruned before it is opened.
const loadAttempts = 5

// sidecar is the metadata file. It carries the build id so a mismatched read is detected.
type sidecar struct {
	BuildId string               `json:"build_id"`
	Chunks  []commonModels.Chunk `json:"chunks"`
}

// FileStore keeps one directory per knowledge base. Every build is an immutable directory
// under builds/ holding a chromem vector export, the chunk sidecar and a manifest. The
// CURRENT file names the live build and is replaced with a single rename.
type FileStore struct {
	root   string
	swaps  *KeyedMutex
	logger *logger_i.Logger
	now    func() time.Time

	mu      sync.Mutex
	handles map[string]Handle
}

func NewFileStore(root string) *FileStore {
	if root == "" {
		root = config.DefaultIndexRoot
	}
	return &FileStore{
		root:    root,
		swaps:   NewKeyedMutex(),
		logger:  logger_i.NewLogger("FileIndexStore"),
		now:     time.Now,
		handles: make(map[string]Handle),
	}
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) dir(kbId string) string {
	return filepath.Join(s.root, SafeId(kbId))
}

func (s *FileStore) buildDir(kbId, buildId string) string {
	return filepath.Join(s.dir(kbId), config.IndexBuildsDir, buildId)
}

// currentBuild reads the CURRENT pointer. fs.ErrNotExist means the kb was never built.
func (s *FileStore) currentBuild(kbId string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(kbId), config.IndexPointerFile))
	if err != nil {
		return "", err
	}
	buildId := strings.TrimSpace(string(data))
	if buildId == "" || buildId != filepath.Base(buildId) {
		return "", fmt.Errorf("invalid build pointer %q", buildId)
	}
	return buildId, nil
}

// currentDir resolves the directory of the live build.
func (s *FileStore) currentDir(kbId string) (string, error) {
	buildId, err := s.currentBuild(kbId)
	if err != nil {
		return "", err
	}
	return s.buildDir(kbId, buildId), nil
}

func collectionName(buildId string) string {
	return "build_" + buildId
}

func (s *FileStore) Build(ctx context.Context, kbId string, chunks []commonModels.Chunk, info BuildInfo) (Handle, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	log := s.logger.FromContext(ctx).With("kbId", kbId)
	indexErr := func(op string, err error) error {
		log.Error("index build failed", "op", op, "error", err)
		return &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: op, Err: err}
	}

	dimension, err := ValidateChunks(kbId, chunks)
	if err != nil {
		return nil, indexErr("validate", err)
	}

	now := s.now()
	buildId := NewBuildId(now)
	staging := filepath.Join(s.root, config.IndexStagingDir, SafeId(kbId)+"-"+buildId)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, indexErr("stage", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	collection, err := writeVectors(ctx, filepath.Join(staging, config.VectorArtifact), buildId, kbId, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, indexErr("write_vectors", err)
	}
	if collection.Count() != len(chunks) {
		return nil, indexErr("verify", fmt.Errorf("vector count %d != chunk count %d", collection.Count(), len(chunks)))
	}

	stored := make([]commonModels.Chunk, len(chunks))
	for i, c := range chunks {
		c.KnowledgeBaseId = kbId
		stored[i] = c
	}
	if err := writeJSON(filepath.Join(staging, config.MetadataArtifact), sidecar{BuildId: buildId, Chunks: stored}); err != nil {
		return nil, indexErr("write_metadata", err)
	}
	manifest := Manifest{
		KnowledgeBaseId:   kbId,
		BuildId:           buildId,
		Vectors:           collection.Count(),
		Chunks:            len(stored),
		Dimension:         dimension,
		EmbeddingProvider: info.EmbeddingProvider,
		MaxTokens:         info.MaxTokens,
		OverlapTokens:     info.OverlapTokens,
		BuiltAt:           now.UTC(),
	}
	if err := writeJSON(filepath.Join(staging, config.ManifestArtifact), manifest); err != nil {
		return nil, indexErr("write_manifest", err)
	}
	syncDir(staging)

	handle := newChromemHandle(manifest, collection, stored)

	unlock, err := s.swaps.Lock(ctx, kbId)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := s.swap(kbId, staging, buildId); err != nil {
		return nil, indexErr("swap", err)
	}
	committed = true
	s.prune(kbId, buildId)

	s.mu.Lock()
	s.handles[kbId] = handle
	s.mu.Unlock()

	log.Info("index swapped in", "buildId", buildId, "vectors", manifest.Vectors, "dimension", dimension)
	return handle, nil
}

// swap moves the staged build under builds/ and then points CURRENT at it. Only the
// pointer rename is visible to readers: before it they resolve the old build, after it the new one.
func (s *FileStore) swap(kbId, staging, buildId string) error {
	target := s.buildDir(kbId, buildId)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create builds dir: %w", err)
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	syncDir(filepath.Dir(target))
	if err := writeFileAtomic(filepath.Join(s.dir(kbId), config.IndexPointerFile), []byte(buildId+"\n")); err != nil {
		_ = os.RemoveAll(target)
		return fmt.Errorf("point to build: %w", err)
	}
	syncDir(s.dir(kbId))
	return nil
}

// prune keeps the newest IndexBuildsKept builds. The one just replaced stays for readers
// that resolved it before the swap, and goes with the next build.
func (s *FileStore) prune(kbId, current string) {
	buildsDir := filepath.Join(s.dir(kbId), config.IndexBuildsDir)
	entries, err := os.ReadDir(buildsDir)
	if err != nil {
		s.logger.Warn("could not list builds", "kbId", kbId, "error", err)
		return
	}
	var old []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != current {
			old = append(old, e.Name())
		}
	}
	// build ids sort by creation time
	sort.Sort(sort.Reverse(sort.StringSlice(old)))
	for i, name := range old {
		if i < config.IndexBuildsKept-1 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(buildsDir, name)); err != nil {
			s.logger.Warn("could not remove previous index", "kbId", kbId, "buildId", name, "error", err)
		}
	}
}

func (s *FileStore) Load(ctx context.Context, kbId string) (Handle, error) {
	var lastErr error
	for attempt := 0; attempt < loadAttempts; attempt++ {
		buildId, err := s.currentBuild(kbId)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kbErrors.KnowledgeBaseNotFound(kbId)
		}
		if err != nil {
			return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: err}
		}

		s.mu.Lock()
		cached, ok := s.handles[kbId]
		s.mu.Unlock()
		if ok && cached.BuildId() == buildId {
			return cached, nil
		}

		handle, err := s.loadBuild(ctx, s.buildDir(kbId, buildId), buildId)
		if err != nil && s.superseded(kbId, buildId) {
			// pruned between resolving CURRENT and opening it, a newer build is live
			lastErr = err
			continue
		}
		if err != nil {
			return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: err}
		}

		s.mu.Lock()
		if cur, ok := s.handles[kbId]; !ok || cur.BuildId() < buildId {
			s.handles[kbId] = handle
		}
		s.mu.Unlock()
		s.logger.FromContext(ctx).Debug("index loaded", "kbId", kbId, "buildId", buildId, "vectors", handle.Len())
		return handle, nil
	}
	return nil, &kbErrors.IndexError{KnowledgeBaseId: kbId, Op: "load", Err: lastErr}
}

func (s *FileStore) superseded(kbId, buildId string) bool {
	now, err := s.currentBuild(kbId)
	return err == nil && now != buildId
}

func (s *FileStore) loadBuild(ctx context.Context, dir, buildId string) (Handle, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	var meta sidecar
	if err := readJSON(filepath.Join(dir, config.MetadataArtifact), &meta); err != nil {
		return nil, err
	}
	if manifest.BuildId != buildId || meta.BuildId != buildId {
		return nil, fmt.Errorf("build %s holds artifacts of %s and %s", buildId, manifest.BuildId, meta.BuildId)
	}

	db := chromem.NewDB()
	name := collectionName(manifest.BuildId)
	if err := db.ImportFromFile(filepath.Join(dir, config.VectorArtifact), "", name); err != nil {
		return nil, fmt.Errorf("import vectors: %w", err)
	}
	collection := db.GetCollection(name, nil)
	if collection == nil {
		return nil, fmt.Errorf("vector export has no collection %s", name)
	}
	if collection.Count() != len(meta.Chunks) || manifest.Vectors != len(meta.Chunks) {
		return nil, fmt.Errorf("corrupt index: %d vectors, %d chunks, manifest says %d",
			collection.Count(), len(meta.Chunks), manifest.Vectors)
	}
	return newChromemHandle(manifest, collection, meta.Chunks), nil
}

// Manifest reads the manifest of the current build without loading vectors.
func (s *FileStore) Manifest(kbId string) (Manifest, error) {
	dir, err := s.currentDir(kbId)
	if err == nil {
		var m Manifest
		if m, err = readManifest(dir); err == nil {
			return m, nil
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, kbErrors.KnowledgeBaseNotFound(kbId)
	}
	return Manifest{}, err
}

// PutArtifact stores a derived file next to the live build, so a rebuild starts without it.
func (s *FileStore) PutArtifact(ctx context.Context, kbId, name string, data []byte) error {
	dir, err := s.currentDir(kbId)
	if err != nil {
		return kbErrors.KnowledgeBaseNotFound(kbId)
	}
	return writeFileAtomic(filepath.Join(dir, filepath.Base(name)), data)
}

func (s *FileStore) GetArtifact(ctx context.Context, kbId, name string) ([]byte, error) {
	dir, err := s.currentDir(kbId)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	var data []byte
	if err == nil {
		data, err = os.ReadFile(filepath.Join(dir, filepath.Base(name)))
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &kbErrors.NotFoundError{Kind: "artifact " + name, Id: kbId}
	}
	return data, err
}

func writeVectors(ctx context.Context, path, buildId, kbId string, chunks []commonModels.Chunk) (*chromem.Collection, error) {
	db := chromem.NewDB()
	name := collectionName(buildId)
	collection, err := db.CreateCollection(name, map[string]string{"kb_id": kbId}, nil)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			docs[i] = chromem.Document{
				ID:        c.ChunkId,
				Metadata:  map[string]string{"source": c.Source, "section_hint": c.SectionHint},
				Embedding: c.Embedding,
				Content:   c.Text,
			}
		}
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, err
		}
	}
	if err := db.ExportToFile(path, true, "", name); err != nil {
		return nil, err
	}
	return collection, nil
}

// chromemHandle scores through the chromem collection and resolves ids against the sidecar.
type chromemHandle struct {
	manifest   Manifest
	collection *chromem.Collection
	chunks     []commonModels.Chunk
	byId       map[string]int
}

func newChromemHandle(m Manifest, collection *chromem.Collection, chunks []commonModels.Chunk) *chromemHandle {
	sorted := append([]commonModels.Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkId < sorted[j].ChunkId })
	byId := make(map[string]int, len(sorted))
	for i, c := range sorted {
		// vectors live in the collection; the sidecar copy stays light
		sorted[i].Embedding = nil
		byId[c.ChunkId] = i
	}
	return &chromemHandle{manifest: m, collection: collection, chunks: sorted, byId: byId}
}

func (h *chromemHandle) KnowledgeBaseId() string { return h.manifest.KnowledgeBaseId }
func (h *chromemHandle) BuildId() string         { return h.manifest.BuildId }
func (h *chromemHandle) Len() int                { return len(h.chunks) }
func (h *chromemHandle) Dimension() int          { return h.manifest.Dimension }

func (h *chromemHandle) Chunk(id string) (commonModels.Chunk, bool) {
	i, ok := h.byId[id]
	if !ok {
		return commonModels.Chunk{}, false
	}
	return h.chunks[i], true
}

func (h *chromemHandle) Chunks() []commonModels.Chunk {
	return append([]commonModels.Chunk(nil), h.chunks...)
}

func (h *chromemHandle) Similarities(ctx context.Context, query []float32) ([]commonModels.ScoredChunk, error) {
	n := h.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if len(query) != h.manifest.Dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), h.manifest.Dimension)
	}
	if isZero(query) {
		return nil, errors.New("query vector has zero length")
	}
	results, err := h.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]commonModels.ScoredChunk, 0, len(results))
	for _, r := range results {
		c, ok := h.Chunk(r.ID)
		if !ok {
			return nil, fmt.Errorf("vector %s has no metadata", r.ID)
		}
		out = append(out, commonModels.ScoredChunk{Chunk: c, Score: r.Similarity})
	}
	return out, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	err := readJSON(filepath.Join(dir, config.ManifestArtifact), &m)
	return m, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileSync(path, data)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeFileAtomic writes next to path and renames over it.
func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
