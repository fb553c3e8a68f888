// Package memory is the in-process Store used by -memory mode and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/storage"
)

type item struct {
	val string
	exp time.Time
}

type session struct {
	userID string
	secret string
	exp    time.Time
}

type Client struct {
	mu        sync.RWMutex
	sessions  map[string]session
	resets    map[string]item
	limit     map[string][]time.Time
	locations map[string]geo.Coordinates
	onboarded map[string]bool
}

func New() *Client {
	return &Client{
		sessions:  make(map[string]session),
		resets:    make(map[string]item),
		limit:     make(map[string][]time.Time),
		locations: make(map[string]geo.Coordinates),
		onboarded: make(map[string]bool),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(_ context.Context, sessionID, userID, secret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = session{userID: userID, secret: secret, exp: time.Now().Add(storage.SessionTTL)}
	return nil
}

func (c *Client) GetSession(_ context.Context, sessionID string) (string, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	if !ok || time.Now().After(s.exp) {
		return "", "", nil
	}
	return s.userID, s.secret, nil
}

func (c *Client) DeleteSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

func (c *Client) SetResetToken(_ context.Context, email, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets[email] = item{val: token, exp: time.Now().Add(storage.ResetTokenTTL)}
	return nil
}

func (c *Client) GetResetToken(_ context.Context, email string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.resets[email]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteResetToken(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resets, email)
	return nil
}

func (c *Client) CheckRateLimit(_ context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-storage.RateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[email] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= storage.RateLimitMax {
		c.limit[email] = kept
		return false, nil
	}
	c.limit[email] = append(kept, now)
	return true, nil
}

func (c *Client) SetLastLocation(_ context.Context, userID string, loc geo.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations[userID] = loc
	return nil
}

func (c *Client) GetLastLocation(_ context.Context, userID string) (*geo.Coordinates, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.locations[userID]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (c *Client) SetOnboarded(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onboarded[userID] = true
	return nil
}

func (c *Client) IsOnboarded(_ context.Context, userID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onboarded[userID], nil
}
