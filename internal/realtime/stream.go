package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
)

const streamBuffer = 64

// StreamHandler serves GET /realtime/stream.
type StreamHandler struct {
	client    redis.UniversalClient
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(client redis.UniversalClient, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{client: client, logger: logger, heartbeat: 30 * time.Second}
}

// ServeHTTP streams the caller's user and role channels until the client
// goes away. Messages that arrive while the client is behind are dropped.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Streaming unsupported", "")
		return
	}

	ctx := r.Context()
	sub := h.client.Subscribe(ctx, UserChannel(p.UserID), RoleChannel(p.Role))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		h.logger.Error("realtime subscribe", slog.String("user_id", p.UserID), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: realtime unavailable", shared.ErrDependency))
		return
	}

	events := make(chan Message, streamBuffer)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			select {
			case events <- m:
			default:
				h.logger.Warn("realtime client behind, dropping event",
					slog.String("user_id", p.UserID),
					slog.String("event", m.Event))
			}
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: connected\ndata: {\"userId\":%q}\n\n", p.UserID)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Event, m.Data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
