// Package blob stores uploaded files and rendered documents out of band.
// Callers keep only the returned locator.
package blob

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Meta describes a stored object.
type Meta struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store persists and retrieves opaque objects.
type Store interface {
	Store(ctx context.Context, key string, r io.Reader, meta Meta) (string, error)
	Retrieve(ctx context.Context, locator string) (io.ReadCloser, Meta, error)
}

// NewKey builds a collision-free object key under prefix.
func NewKey(prefix, filename string) string {
	name := sanitizeName(filename)
	if name == "" {
		name = "file"
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString()+"-"+name)
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
