package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/shared"
)

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc, repo
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	n, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: "Order placed", Message: "ORD-0001 confirmed"})
	require.NoError(t, err)
	assert.Equal(t, TypeInfo, n.Type)
	assert.False(t, n.Read)

	_, err = svc.Create(ctx, CreateInput{UserID: "u1", Title: "x", Message: "y", Type: "urgent"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{Title: "x", Message: "y"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListNewestFirstWithClampedLimit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		_, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: fmt.Sprintf("n%d", i), Message: "m", Type: TypeSuccess})
		require.NoError(t, err)
	}

	items, err := svc.ListForUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultLimit)
	assert.Equal(t, "n119", items[0].Title)

	items, err = svc.ListForUser(ctx, "u1", 500)
	require.NoError(t, err)
	assert.Len(t, items, MaxLimit)

	items, err = svc.ListForUser(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestMarkReadOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	n, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Message: "m"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, n.ID, "u2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	first, err := svc.MarkRead(ctx, n.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, first.ReadAt)

	again, err := svc.MarkRead(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, *first.ReadAt, *again.ReadAt, "readAt is kept on repeat")

	_, err = svc.MarkRead(ctx, "missing", "u1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Message: "m"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateInput{UserID: "u2", Title: "t", Message: "m"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	updated, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	updated, err = svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	count, err = svc.UnreadCount(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
