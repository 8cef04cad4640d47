package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_OfflineDefaults(t *testing.T) {
	dir := t.TempDir()
	s := config.Default()
	s.Index.Root = filepath.Join(dir, "index")
	s.Storage.DataRoot = dir

	c, err := New(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, c.LLM)
	assert.IsType(t, &index.FileStore{}, c.Index)

	health := c.Health()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, config.LLMProviderNone, health.LLMProvider)
	assert.Equal(t, config.EmbeddingProviderHash, health.EmbeddingProvider)
	assert.Equal(t, config.IndexBackendLocal, health.IndexBackend)

	answer, err := c.Service.Answer(context.Background(), "kb_global", "What is the EMD?")
	require.NoError(t, err)
	assert.True(t, answer.NoContext)
}

func TestNewIndexStore_UnknownBackend(t *testing.T) {
	_, err := NewIndexStore(context.Background(), config.IndexSettings{Backend: "faiss"})
	assert.Error(t, err)
}

func TestNewLocker_RedisDisabled(t *testing.T) {
	l := NewLocker(context.Background(), config.RedisSettings{})
	assert.IsType(t, &index.KeyedMutex{}, l)
}
