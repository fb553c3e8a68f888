package storage

import (
	"context"
	"time"

	"github.com/bloodlink/internal/geo"
)

// Store is the volatile key-value state shared by the services: signed
// sessions, password-reset tokens, the viewer's last known location,
// onboarding flags and the auth rate limit.
// Implementations: redis.Client, memory.Client (for -dev without Redis).
type Store interface {
	SetSession(ctx context.Context, sessionID, userID, secret string) error
	GetSession(ctx context.Context, sessionID string) (userID, secret string, err error)
	DeleteSession(ctx context.Context, sessionID string) error

	SetResetToken(ctx context.Context, email, token string) error
	GetResetToken(ctx context.Context, email string) (string, error)
	DeleteResetToken(ctx context.Context, email string) error
	CheckRateLimit(ctx context.Context, email string) (allowed bool, err error)

	SetLastLocation(ctx context.Context, userID string, loc geo.Coordinates) error
	GetLastLocation(ctx context.Context, userID string) (*geo.Coordinates, error)

	SetOnboarded(ctx context.Context, userID string) error
	IsOnboarded(ctx context.Context, userID string) (bool, error)

	Close() error
}

// TTLs shared by the implementations.
const (
	SessionTTL      = 30 * 24 * time.Hour
	ResetTokenTTL   = 15 * time.Minute
	LastLocationTTL = 24 * time.Hour
	RateLimitWindow = 10 * time.Minute
	RateLimitMax    = 10
)
