package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/storage"
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Sessions are stored as "userID\nsecret" under one key so lookup is a
// single round trip.
func (c *Client) SetSession(ctx context.Context, sessionID, userID, secret string) error {
	return c.cli.Set(ctx, "session:"+sessionID, userID+"\n"+secret, storage.SessionTTL).Err()
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (string, string, error) {
	val, err := c.cli.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	userID, secret, ok := strings.Cut(val, "\n")
	if !ok {
		return "", "", nil
	}
	return userID, secret, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session:"+sessionID).Err()
}

func (c *Client) SetResetToken(ctx context.Context, email, token string) error {
	return c.cli.Set(ctx, "reset:"+email, token, storage.ResetTokenTTL).Err()
}

// GetResetToken returns the pending token. The key is kept until the reset
// succeeds; a token is single use.
func (c *Client) GetResetToken(ctx context.Context, email string) (string, error) {
	val, err := c.cli.Get(ctx, "reset:"+email).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteResetToken(ctx context.Context, email string) error {
	return c.cli.Del(ctx, "reset:"+email).Err()
}

// CheckRateLimit counts auth attempts per email within the window.
func (c *Client) CheckRateLimit(ctx context.Context, email string) (bool, error) {
	key := "auth_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, storage.RateLimitWindow)
	}
	return n <= int64(storage.RateLimitMax), nil
}

func (c *Client) SetLastLocation(ctx context.Context, userID string, loc geo.Coordinates) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, "last_location:"+userID, data, storage.LastLocationTTL).Err()
}

func (c *Client) GetLastLocation(ctx context.Context, userID string) (*geo.Coordinates, error) {
	val, err := c.cli.Get(ctx, "last_location:"+userID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loc geo.Coordinates
	if err := json.Unmarshal([]byte(val), &loc); err != nil {
		return nil, nil
	}
	return &loc, nil
}

func (c *Client) SetOnboarded(ctx context.Context, userID string) error {
	return c.cli.Set(ctx, "onboarded:"+userID, "1", 0).Err()
}

func (c *Client) IsOnboarded(ctx context.Context, userID string) (bool, error) {
	val, err := c.cli.Get(ctx, "onboarded:"+userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}
