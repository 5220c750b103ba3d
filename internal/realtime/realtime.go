// Package realtime pushes events to connected browsers. Publishers write to
// Redis channels; every API instance streams the channels its connected
// users care about over server-sent events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fabline/fabline/internal/users"
)

// Message is one pushed event.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UserChannel names the channel for a single user.
func UserChannel(userID string) string { return "realtime:user:" + userID }

// RoleChannel names the channel shared by a role.
func RoleChannel(role users.Role) string { return "realtime:role:" + string(role) }

// Publisher publishes messages through Redis.
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher constructs a Publisher.
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// SendToUser pushes event to every stream of userID.
func (p *Publisher) SendToUser(ctx context.Context, userID, event string, data any) error {
	return p.publish(ctx, UserChannel(userID), event, data)
}

// SendToRole pushes event to every stream of a user holding role.
func (p *Publisher) SendToRole(ctx context.Context, role users.Role, event string, data any) error {
	return p.publish(ctx, RoleChannel(role), event, data)
}

func (p *Publisher) publish(ctx context.Context, channel, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	payload, err := json.Marshal(Message{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish %s: %w", channel, err)
	}
	return nil
}
