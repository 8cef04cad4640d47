package docstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/index"
)

// Store holds the uploaded source documents of each knowledge base.
type Store interface {
	Put(ctx context.Context, kbId, name string, data []byte) error
	Get(ctx context.Context, kbId, name string) ([]byte, error)
	// List returns document names sorted ascending.
	List(ctx context.Context, kbId string) ([]string, error)
}

var ErrInvalidName = errors.New("invalid document name")

// CleanName keeps the base name of an upload and rejects anything that is not a pdf.
func CleanName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.EqualFold(filepath.Ext(base), ".pdf") {
		return "", fmt.Errorf("%w: %q is not a pdf", ErrInvalidName, name)
	}
	return base, nil
}

func objectKey(kbId, name string) string {
	return index.SafeId(kbId) + "/" + name
}

// New picks the backend named in settings.
func New(ctx context.Context, s config.StorageSettings) (Store, error) {
	switch s.Backend {
	case config.StorageBackendMinio:
		return NewMinioStore(ctx, s)
	case config.StorageBackendLocal, "":
		root := s.DataRoot
		if root == "" {
			root = config.DefaultDataRoot
		}
		return NewLocalStore(filepath.Join(root, "documents")), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}
