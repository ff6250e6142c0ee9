// Package flow keeps pending federated sign-ins between the client that
// started them and the browser callback that finishes them.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Flow is one federated sign-in attempt. Verifier never leaves the service.
type Flow struct {
	ID        string         `json:"id"`
	Provider  string         `json:"provider"`
	State     string         `json:"state"`
	Verifier  string         `json:"verifier"`
	Status    Status         `json:"status"`
	Token     string         `json:"token,omitempty"`
	Identity  *auth.Identity `json:"identity,omitempty"`
	Code      apperrors.Code `json:"code,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Terminal reports whether the flow finished either way.
func (f Flow) Terminal() bool {
	return f.Status == StatusComplete || f.Status == StatusFailed
}

// Completed returns a copy of f that carries the sign-in result.
func (f Flow) Completed(token string, identity *auth.Identity) Flow {
	f.Status = StatusComplete
	f.Token = token
	f.Identity = identity.Clone()
	f.Code = ""
	return f
}

// Failed returns a copy of f that carries a failure code.
func (f Flow) Failed(code apperrors.Code) Flow {
	f.Status = StatusFailed
	f.Token = ""
	f.Identity = nil
	f.Code = code
	return f
}

const (
	flowPrefix  = "ecotrack:flow:"
	statePrefix = "ecotrack:flowstate:"
)

type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Create stores a new pending flow and its state index.
func (s *RedisStore) Create(ctx context.Context, f Flow) error {
	if f.ID == "" || f.State == "" {
		return errors.New("flow: missing id or state")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("flow: marshal: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, flowPrefix+f.ID, data, s.ttl)
		pipe.Set(ctx, statePrefix+f.State, f.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("flow: create: %w", err)
	}
	return nil
}

// Get returns the flow, or (nil, nil) if it is unknown or expired.
func (s *RedisStore) Get(ctx context.Context, id string) (*Flow, error) {
	data, err := s.client.Get(ctx, flowPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: get: %w", err)
	}
	var f Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("flow: unmarshal: %w", err)
	}
	return &f, nil
}

// ByState resolves the flow a provider callback belongs to.
func (s *RedisStore) ByState(ctx context.Context, state string) (*Flow, error) {
	id, err := s.client.Get(ctx, statePrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: state lookup: %w", err)
	}
	return s.Get(ctx, id)
}

// Finish stores a terminal flow and drops its state index so the
// callback cannot be replayed.
func (s *RedisStore) Finish(ctx context.Context, f Flow) error {
	if !f.Terminal() {
		return errors.New("flow: finish requires a terminal status")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("flow: marshal: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, flowPrefix+f.ID, data, redis.KeepTTL)
		pipe.Del(ctx, statePrefix+f.State)
		return nil
	})
	if err != nil {
		return fmt.Errorf("flow: finish: %w", err)
	}
	return nil
}

// Delete removes a flow once its result has been handed out.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, flowPrefix+id).Err()
}
