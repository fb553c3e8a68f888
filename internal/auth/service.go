// Package auth implements password-based accounts on top of signed
// sessions: the client receives a session id plus a per-session secret and
// signs every request with HMAC-SHA256.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many attempts")
	ErrInvalidToken       = errors.New("invalid or expired reset token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email")
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// Mailer delivers the password-reset token.
type Mailer interface {
	SendResetToken(ctx context.Context, to, token string) error
}

type Service struct {
	users UserStore
	kv    storage.Store
	mail  Mailer
	now   func() time.Time
}

func NewService(users UserStore, kv storage.Store, mail Mailer) *Service {
	return &Service{users: users, kv: kv, mail: mail, now: time.Now}
}

// Session is handed to the client after register/login. The secret never
// travels again: the client proves possession by signing requests with it.
type Session struct {
	SessionID     string            `json:"session_id"`
	SessionSecret string            `json:"session_secret"`
	User          *model.UserPublic `json:"user"`
}

// RegisterParams carries the sign-up fields.
type RegisterParams struct {
	Email      string       `json:"email"`
	Password   string       `json:"password"`
	Name       string       `json:"name"`
	Phone      string       `json:"phone"`
	BloodGroup string       `json:"blood_group"`
	Gender     model.Gender `json:"gender"`
	Age        int          `json:"age"`
}

// Register creates the account and opens a first session.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(p.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if !model.ValidBloodGroup(p.BloodGroup) {
		return nil, fmt.Errorf("auth.Register: unknown blood group %q", p.BloodGroup)
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("auth.Register lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth.Register hash: %w", err)
	}

	now := s.now().UTC()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(p.Name),
		Phone:        strings.TrimSpace(p.Phone),
		PasswordHash: string(hash),
		BloodGroup:   p.BloodGroup,
		Gender:       p.Gender,
		Age:          p.Age,
		Availability: model.AvailabilityUnavailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("auth.Register create: %w", err)
	}
	return s.openSession(ctx, u)
}

// Login verifies the password and opens a session. Wrong email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	allowed, err := s.kv.CheckRateLimit(ctx, email)
	if err != nil {
		logger.Errorf("auth rate limit check email=%s: %v", email, err)
	} else if !allowed {
		return nil, ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth.Login lookup: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.openSession(ctx, u)
}

// Logout drops the session; the secret becomes useless immediately.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.kv.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// RequestReset mails a reset token. An unknown email gets the same nil
// return so the endpoint cannot be used to enumerate accounts.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	allowed, err := s.kv.CheckRateLimit(ctx, email)
	if err == nil && !allowed {
		return ErrRateLimited
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("auth.RequestReset lookup: %w", err)
	}
	token := newResetToken()
	if err := s.kv.SetResetToken(ctx, email, token); err != nil {
		return fmt.Errorf("auth.RequestReset save token: %w", err)
	}
	if err := s.mail.SendResetToken(ctx, email, token); err != nil {
		return fmt.Errorf("auth.RequestReset send: %w", err)
	}
	return nil
}

// ResetPassword consumes a token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}
	stored, err := s.kv.GetResetToken(ctx, email)
	if err != nil {
		return fmt.Errorf("auth.ResetPassword token lookup: %w", err)
	}
	if stored == "" || !hmac.Equal([]byte(stored), []byte(token)) {
		return ErrInvalidToken
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("auth.ResetPassword lookup: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth.ResetPassword hash: %w", err)
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("auth.ResetPassword update: %w", err)
	}
	if err := s.kv.DeleteResetToken(ctx, email); err != nil {
		logger.Errorf("auth reset token cleanup email=%s: %v", email, err)
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, u *model.User) (*Session, error) {
	sessionID := uuid.New().String()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("auth session secret: %w", err)
	}
	secretB64 := base64.StdEncoding.EncodeToString(secret)
	if err := s.kv.SetSession(ctx, sessionID, u.ID, secretB64); err != nil {
		return nil, fmt.Errorf("auth save session: %w", err)
	}
	pub := u.ToPublic()
	return &Session{SessionID: sessionID, SessionSecret: secretB64, User: &pub}, nil
}

// newResetToken returns an 8-char token. Entropy is bounded by the 15 minute
// TTL and the per-email rate limit.
func newResetToken() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
