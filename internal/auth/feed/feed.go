// Package feed carries identity changes from the request that caused
// them to every open event stream, across service instances.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ecotrack/internal/auth"
	"ecotrack/internal/logger"
)

// Event is one identity change. A nil Identity means signed out.
type Event struct {
	Identity *auth.Identity
}

func SessionChannel(sessionID string) string {
	return "ecotrack:identity:session:" + sessionID
}

func UserChannel(userID string) string {
	return "ecotrack:identity:user:" + userID
}

type Hub struct {
	client *redis.Client
}

func NewHub(client *redis.Client) *Hub {
	return &Hub{client: client}
}

// PublishSession announces a change that concerns one session only,
// such as sign-out.
func (h *Hub) PublishSession(ctx context.Context, sessionID string, identity *auth.Identity) error {
	return h.publish(ctx, SessionChannel(sessionID), identity)
}

// PublishUser announces a change to every session of the user, such as
// a profile edit.
func (h *Hub) PublishUser(ctx context.Context, userID string, identity *auth.Identity) error {
	return h.publish(ctx, UserChannel(userID), identity)
}

func (h *Hub) publish(ctx context.Context, channel string, identity *auth.Identity) error {
	payload, err := Encode(identity)
	if err != nil {
		return err
	}
	if err := h.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("feed: publish: %w", err)
	}
	return nil
}

// Subscribe listens on the session and user channels until ctx is done.
// The returned channel is closed when the subscription ends.
func (h *Hub) Subscribe(ctx context.Context, sessionID, userID string) (<-chan Event, error) {
	ps := h.client.Subscribe(ctx, SessionChannel(sessionID), UserChannel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("feed: subscribe: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				identity, err := Decode([]byte(msg.Payload))
				if err != nil {
					logger.Warn("feed: dropping malformed event", map[string]any{
						"channel": msg.Channel,
						"error":   err.Error(),
					})
					continue
				}
				select {
				case out <- Event{Identity: identity}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Encode renders an identity as the JSON payload used on the wire;
// signed out is the literal null.
func Encode(identity *auth.Identity) ([]byte, error) {
	payload, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("feed: encode: %w", err)
	}
	return payload, nil
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (*auth.Identity, error) {
	var identity *auth.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("feed: decode: %w", err)
	}
	return identity, nil
}
