package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireAuth("s3cret")

	client, err := New(context.Background(), Options{Addr: srv.Addr(), Password: "s3cret"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestNewFailsOnWrongPassword(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.RequireAuth("s3cret")

	_, err := New(context.Background(), Options{Addr: srv.Addr(), Password: "nope"})
	require.ErrorContains(t, err, "platform/cache: ping")
}
