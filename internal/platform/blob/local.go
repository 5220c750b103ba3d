package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabline/fabline/internal/shared"
)

const localScheme = "local:"

// LocalStore keeps objects on disk below root.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("blob: local root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Store writes r to key and returns a local locator.
func (s *LocalStore) Store(ctx context.Context, key string, r io.Reader, meta Meta) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	meta.Size = n
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target+".meta", sidecar, 0o644); err != nil {
		return "", fmt.Errorf("blob: write meta: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("blob: rename: %w", err)
	}
	return localScheme + key, nil
}

// Retrieve opens the object behind locator.
func (s *LocalStore) Retrieve(ctx context.Context, locator string) (io.ReadCloser, Meta, error) {
	key, ok := strings.CutPrefix(locator, localScheme)
	if !ok {
		return nil, Meta{}, fmt.Errorf("%w: locator %q is not local", shared.ErrNotFound, locator)
	}
	target, err := s.resolve(key)
	if err != nil {
		return nil, Meta{}, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Meta{}, fmt.Errorf("%w: blob %s", shared.ErrNotFound, key)
		}
		return nil, Meta{}, fmt.Errorf("blob: open: %w", err)
	}
	var meta Meta
	if raw, err := os.ReadFile(target + ".meta"); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return f, meta, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", shared.Validationf("blob key required")
	}
	return filepath.Join(s.root, clean), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
