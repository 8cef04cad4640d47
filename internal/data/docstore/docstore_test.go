package docstore

import (
	"context"
	"testing"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"tender.pdf", "tender.pdf", false},
		{"Tender.PDF", "Tender.PDF", false},
		{"../../etc/passwd.pdf", "passwd.pdf", false},
		{`C:\uploads\bid.pdf`, "bid.pdf", false},
		{"notes.txt", "", true},
		{".hidden.pdf", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	names, err := s.List(ctx, "kb")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.Put(ctx, "kb", "b.pdf", []byte("%PDF-b")))
	require.NoError(t, s.Put(ctx, "kb", "a.pdf", []byte("%PDF-a")))
	require.NoError(t, s.Put(ctx, "other", "c.pdf", []byte("%PDF-c")))
	require.NoError(t, s.Put(ctx, "kb", "a.pdf", []byte("%PDF-a2")))

	names, err = s.List(ctx, "kb")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)

	data, err := s.Get(ctx, "kb", "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-a2", string(data))

	_, err = s.Get(ctx, "kb", "c.pdf")
	assert.ErrorIs(t, err, kbErrors.ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "kb", "x.exe", nil), ErrInvalidName)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageSettings{Backend: "ftp"})
	assert.Error(t, err)

	s, err := New(context.Background(), config.StorageSettings{Backend: config.StorageBackendLocal, DataRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)
}
