package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Chats persist the unordered participant pair as two sorted columns, which
// makes the pair lookup a single indexed equality query.
type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func sortPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func (r *ChatRepository) Create(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	if len(c.Participants) != 2 {
		return fmt.Errorf("chatRepo.Create: chat %s must have exactly two participants", c.ID)
	}
	low, high := sortPair(c.Participants[0], c.Participants[1])
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, participant_low, participant_high, unread_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, low, high, c.UnreadCount, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	var low, high string
	err := r.pool.QueryRow(ctx,
		`SELECT id, participant_low, participant_high, unread_count, created_at, updated_at
		 FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &low, &high, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	c.Participants = []string{low, high}
	return c, nil
}

// FindByParticipants returns the chat whose participant set is exactly
// {a, b}, or nil when none exists.
func (r *ChatRepository) FindByParticipants(ctx context.Context, a, b string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindByParticipants", time.Now())()
	low, high := sortPair(a, b)
	c := &model.Chat{}
	var pl, ph string
	err := r.pool.QueryRow(ctx,
		`SELECT id, participant_low, participant_high, unread_count, created_at, updated_at
		 FROM chats WHERE participant_low = $1 AND participant_high = $2`, low, high,
	).Scan(&c.ID, &pl, &ph, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindByParticipants: %w", err)
	}
	c.Participants = []string{pl, ph}
	return c, nil
}

func (r *ChatRepository) ListByParticipant(ctx context.Context, userID string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chat.ListByParticipant", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, participant_low, participant_high, unread_count, created_at, updated_at
		 FROM chats WHERE participant_low = $1 OR participant_high = $1
		 ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListByParticipant query: %w", err)
	}
	defer rows.Close()

	chats := make([]model.Chat, 0, 16)
	for rows.Next() {
		var c model.Chat
		var low, high string
		if err := rows.Scan(&c.ID, &low, &high, &c.UnreadCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("chatRepo.ListByParticipant scan: %w", err)
		}
		c.Participants = []string{low, high}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListByParticipant rows: %w", err)
	}
	return chats, nil
}

// Touch bumps a chat's updated_at after new activity.
func (r *ChatRepository) Touch(ctx context.Context, id string, t time.Time) error {
	defer logger.DeferLogDuration("chat.Touch", time.Now())()
	_, err := r.pool.Exec(ctx, `UPDATE chats SET updated_at = $1 WHERE id = $2`, t, id)
	if err != nil {
		return fmt.Errorf("chatRepo.Touch: %w", err)
	}
	return nil
}
