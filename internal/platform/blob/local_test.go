package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/shared"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("quotations/q1", "Quote #1.pdf")
	locator, err := store.Store(ctx, key, strings.NewReader("%PDF-1.7"), Meta{Name: "Quote #1.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(locator, "local:quotations/q1/"))

	rc, meta, err := store.Retrieve(ctx, locator)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))
	assert.Equal(t, "application/pdf", meta.ContentType)
	assert.EqualValues(t, 8, meta.Size)
}

func TestLocalStoreMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Retrieve(context.Background(), "local:nope/file.pdf")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, _, err = store.Retrieve(context.Background(), "s3:other")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLocalStoreConfinesKeys(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	locator, err := store.Store(context.Background(), "../../etc/passwd", strings.NewReader("x"), Meta{})
	require.NoError(t, err)
	target, err := store.resolve(strings.TrimPrefix(locator, "local:"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, root))
}

func TestNewKeySanitizes(t *testing.T) {
	key := NewKey("/inquiries/abc/", "../drawing v2.dxf")
	assert.True(t, strings.HasPrefix(key, "inquiries/abc/"))
	assert.True(t, strings.HasSuffix(key, "-drawing_v2.dxf"))
}
