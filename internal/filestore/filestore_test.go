package filestore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)

	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)

	return s
}

func TestSaveAndRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	url, err := s.Save(ctx, "passport.JPG", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	stored := filepath.Join(s.Dir(), filepath.Base(url))

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, s.Remove(ctx, url))

	_, err = os.Stat(stored)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Second removal is a no-op.
	require.NoError(t, s.Remove(ctx, url))
}

func TestSaveRejectsInvalidFiles(t *testing.T) {
	s := newTestStore(t, WithMaxBytes(4))
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		body     []byte
		wantErr  error
	}{
		{name: "executable", filename: "run.exe", body: []byte("x"), wantErr: ErrFileTypeNotAllowed},
		{name: "no extension", filename: "selfie", body: []byte("x"), wantErr: ErrFileTypeNotAllowed},
		{name: "empty", filename: "a.pdf", body: nil, wantErr: ErrFileEmpty},
		{name: "too large", filename: "a.pdf", body: []byte("12345"), wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, tt.filename, bytes.NewReader(tt.body))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveRejectsForeignURL(t *testing.T) {
	s := newTestStore(t)

	err := s.Remove(context.Background(), "/etc/passwd")
	require.ErrorIs(t, err, ErrFileURLInvalid)
}
