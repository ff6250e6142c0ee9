// Package redis is the shared Redis connection of the identity service.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const dialTimeout = 2 * time.Second

type Client struct {
	*goredis.Client
}

// Dial connects to addr and fails when Redis does not answer a ping
// within dialTimeout.
func Dial(ctx context.Context, addr, password string) (*Client, error) {
	c := &Client{Client: goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: dialTimeout,
	})}
	if err := c.Check(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Check pings Redis.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
