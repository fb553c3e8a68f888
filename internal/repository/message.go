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

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, text, image_url, status, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChatID, m.SenderID, m.Text, m.ImageURL, m.Status, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) Get(ctx context.Context, chatID, messageID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Get", time.Now())()
	m := &model.Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, chat_id, sender_id, text, COALESCE(image_url,''), status, ts
		 FROM messages WHERE chat_id = $1 AND id = $2`, chatID, messageID,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.ImageURL, &m.Status, &m.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Get: %w", err)
	}
	return m, nil
}

// ListByChat returns the chat's full message list, timestamp ascending.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListByChat", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, chat_id, sender_id, text, COALESCE(image_url,''), status, ts
		 FROM messages WHERE chat_id = $1
		 ORDER BY ts ASC`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 64)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.ImageURL, &m.Status, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("msgRepo.ListByChat scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat rows: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) LastMessage(ctx context.Context, chatID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.LastMessage", time.Now())()
	m := &model.Message{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, chat_id, sender_id, text, COALESCE(image_url,''), status, ts
		 FROM messages WHERE chat_id = $1
		 ORDER BY ts DESC
		 LIMIT 1`, chatID,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &m.ImageURL, &m.Status, &m.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.LastMessage: %w", err)
	}
	return m, nil
}

// UpdateStatus sets a message's status. The monotonic guard lives in the
// chat service; the guard here only prevents regressions racing in from two
// writers (a lower rank never overwrites a higher one).
func (r *MessageRepository) UpdateStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error {
	defer logger.DeferLogDuration("msg.UpdateStatus", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = $1 WHERE chat_id = $2 AND id = $3
		   AND array_position(ARRAY['sent','delivered','seen'], status) <= array_position(ARRAY['sent','delivered','seen'], $1)`,
		status, chatID, messageID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UpdateStatus: %w", err)
	}
	return nil
}
