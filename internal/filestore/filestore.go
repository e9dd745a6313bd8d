// Package filestore keeps uploaded documents on local disk and hands out the URL
// under which the HTTP server exposes them.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileEmpty          = errors.New("file is empty")
	ErrFileTooLarge       = errors.New("file is too large")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	ErrFileURLInvalid     = errors.New("file url is invalid")
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".pdf":  {},
}

type Store struct {
	log       *slog.Logger
	dir       string
	urlPrefix string
	maxBytes  int64
}

type Config struct {
	logger    *slog.Logger
	urlPrefix string
	maxBytes  int64
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithURLPrefix sets the path the stored files are served from.
func WithURLPrefix(prefix string) Option {
	return func(c *Config) {
		c.urlPrefix = "/" + strings.Trim(prefix, "/")
	}
}

func WithMaxBytes(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func New(dir string, opts ...Option) (*Store, error) {
	cfg := &Config{
		logger:    slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		urlPrefix: "/uploads",
		maxBytes:  5 << 20,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("os.MkdirAll: %w", err)
	}

	return &Store{
		log:       cfg.logger.With(slog.String("module", "filestore")),
		dir:       dir,
		urlPrefix: cfg.urlPrefix,
		maxBytes:  cfg.maxBytes,
	}, nil
}

// Dir is the directory the files are written to.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Save stores r under a generated name that keeps the extension of filename and
// returns the public URL of the file.
func (s *Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, ext)
	}

	if err := ctx.Err(); err != nil {
		return "", err //nolint:wrapcheck
	}

	name := uuid.NewString() + ext

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("os.CreateTemp: %w", err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck

	written, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("io.Copy: %w", err)
	}

	switch {
	case written == 0:
		return "", ErrFileEmpty
	case written > s.maxBytes:
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("os.Rename: %w", err)
	}

	s.log.Debug("File stored", slog.String("name", name), slog.Int64("size", written))

	return path.Join(s.urlPrefix, name), nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *Store) Remove(_ context.Context, url string) error {
	dir, name := path.Split(url)
	if strings.TrimSuffix(dir, "/") != s.urlPrefix || name == "" || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrFileURLInvalid, url)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove: %w", err)
	}

	return nil
}
