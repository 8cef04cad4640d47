package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/rag/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command with fresh flag values and an isolated index root.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := t.TempDir()
	cfg := filepath.Join(root, "settings.yaml")
	yaml := "index:\n  root: " + filepath.Join(root, "index") + "\nstorage:\n  data_root: " + filepath.Join(root, "data") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(yaml), 0o600))

	dirFlag, kbIdFlag, configFlag, providerFlag = "", config.DefaultKnowledgeBaseId, "", ""
	batchFlag, maxTokensFlag, overlapFlag = 0, 0, -1
	for _, name := range []string{"dir", "kb-id", "config", "provider", "batch", "max-tokens", "overlap"} {
		rootCmd.Flags().Lookup(name).Changed = false
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", cfg, "--provider", config.EmbeddingProviderHash}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestBuildIndex_RequiresDir(t *testing.T) {
	_, err := execute(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dir")
}

func TestBuildIndex_Failures(t *testing.T) {
	empty := t.TempDir()
	broken := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(broken, "locked.pdf"), []byte("ENCRYPTED not a pdf"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "notes.txt"), []byte("ignored"), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantOut string
	}{
		{"missing directory", []string{"--dir", filepath.Join(empty, "nope")}, ingest.ErrDirectoryMissing, ""},
		{"no pdfs", []string{"--dir", empty}, ingest.ErrNoDocuments, ""},
		{"every document skipped", []string{"--dir", broken, "--kb-id", "kb_t"}, ingest.ErrNothingIndexed, "skipped locked.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantOut != "" {
				assert.Contains(t, out, tt.wantOut)
			}
		})
	}
}

func TestBuildIndex_InvalidChunking(t *testing.T) {
	_, err := execute(t, "--dir", t.TempDir(), "--max-tokens", "10", "--overlap", "20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBuildIndex_EmptyKnowledgeBase(t *testing.T) {
	_, err := execute(t, "--dir", t.TempDir(), "--kb-id", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kb-id")
}

func TestLoadSettings_FlagsOverride(t *testing.T) {
	configFlag, providerFlag = "", config.EmbeddingProviderHash
	batchFlag, maxTokensFlag, overlapFlag = 8, 200, 20
	t.Cleanup(func() {
		providerFlag = ""
		batchFlag, maxTokensFlag, overlapFlag = 0, 0, -1
	})

	s, err := loadSettings()
	require.NoError(t, err)
	assert.Equal(t, config.EmbeddingProviderHash, s.Embedding.Provider)
	assert.Equal(t, 8, s.Embedding.BatchSize)
	assert.Equal(t, 200, s.Chunking.MaxTokens)
	assert.Equal(t, 20, s.Chunking.OverlapTokens)
}
