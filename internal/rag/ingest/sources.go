package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akolanti/TenderRAG/internal/data/docstore"
)

// Source is one document to index. Name becomes the citation source and seeds the document id.
type Source struct {
	Name string
	Open func(ctx context.Context) ([]byte, error)
}

var ErrDirectoryMissing = errors.New("directory does not exist")

// ScanDirectory finds *.pdf below dir, case insensitive, sorted by relative path.
func ScanDirectory(dir string) ([]Source, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dir, ErrDirectoryMissing)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var sources []Source
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		full := path
		sources = append(sources, Source{
			Name: filepath.ToSlash(rel),
			Open: func(context.Context) ([]byte, error) { return os.ReadFile(full) },
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// DocStoreSources lists the uploaded documents of kbId. Bytes are fetched lazily.
func DocStoreSources(ctx context.Context, store docstore.Store, kbId string) ([]Source, error) {
	names, err := store.List(ctx, kbId)
	if err != nil {
		return nil, fmt.Errorf("list documents of %s: %w", kbId, err)
	}
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, Source{
			Name: name,
			Open: func(ctx context.Context) ([]byte, error) { return store.Get(ctx, kbId, name) },
		})
	}
	return sources, nil
}
