package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
)

type LocalStore struct {
	root   string
	logger *logger_i.Logger
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root, logger: logger_i.NewLogger("LocalDocStore")}
}

func (s *LocalStore) path(kbId, name string) string {
	return filepath.Join(s.root, index.SafeId(kbId), name)
}

func (s *LocalStore) Put(ctx context.Context, kbId, name string, data []byte) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}
	dst := s.path(kbId, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return err
	}
	s.logger.FromContext(ctx).Debug("document stored", "kbId", kbId, "name", name, "bytes", len(data))
	return nil
}

func (s *LocalStore) Get(ctx context.Context, kbId, name string) ([]byte, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(kbId, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &kbErrors.NotFoundError{Kind: "document", Id: kbId + "/" + name}
	}
	return data, err
}

func (s *LocalStore) List(ctx context.Context, kbId string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, index.SafeId(kbId)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
