package realtime

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/users"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublisherWritesEnvelope(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()
	sub := client.Subscribe(ctx, RoleChannel(users.RoleAdmin))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewPublisher(client)
	require.NoError(t, pub.SendToRole(ctx, users.RoleAdmin, "order.created", map[string]string{"orderId": "o1"}))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "realtime:role:admin", msg.Channel)
		assert.JSONEq(t, `{"event":"order.created","data":{"orderId":"o1"}}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestStreamDeliversUserAndRoleEvents(t *testing.T) {
	client := newClient(t)
	handler := NewStreamHandler(client, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	principal := auth.Principal{UserID: "cust-1", Role: users.RoleCustomer}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "event: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
			}
		}
	}
	assert.Equal(t, "connected", readEvent())

	pub := NewPublisher(client)
	require.NoError(t, pub.SendToUser(ctx, "cust-1", "order.status_changed", map[string]string{"newStatus": "dispatched"}))
	assert.Equal(t, "order.status_changed", readEvent())

	require.NoError(t, pub.SendToUser(ctx, "cust-2", "ignored", nil))
	require.NoError(t, pub.SendToRole(ctx, users.RoleCustomer, "broadcast", nil))
	assert.Equal(t, "broadcast", readEvent())
}

func TestStreamRequiresPrincipal(t *testing.T) {
	handler := NewStreamHandler(newClient(t), slog.Default())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
