package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/request"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

const requestCols = `id, requester_id, requester_name, blood_group, urgency, hospital,
	lat, lon, COALESCE(notes,''), status, COALESCE(accepted_by,''), COALESCE(sent_to,''),
	created_at, updated_at`

func scanRequest(row pgx.Row) (*model.BloodRequest, error) {
	br := &model.BloodRequest{}
	err := row.Scan(
		&br.ID, &br.RequesterID, &br.RequesterName, &br.BloodGroup, &br.Urgency, &br.Hospital,
		&br.Location.Latitude, &br.Location.Longitude, &br.Notes, &br.Status, &br.AcceptedBy, &br.SentTo,
		&br.CreatedAt, &br.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return br, nil
}

func (r *RequestRepository) Create(ctx context.Context, br *model.BloodRequest) error {
	defer logger.DeferLogDuration("request.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO blood_requests
		 (id, requester_id, requester_name, blood_group, urgency, hospital, lat, lon, notes, status, accepted_by, sent_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		br.ID, br.RequesterID, br.RequesterName, br.BloodGroup, br.Urgency, br.Hospital,
		br.Location.Latitude, br.Location.Longitude, br.Notes, br.Status, br.AcceptedBy, br.SentTo,
		br.CreatedAt, br.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("requestRepo.Create: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*model.BloodRequest, error) {
	defer logger.DeferLogDuration("request.GetByID", time.Now())()
	br, err := scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestCols+` FROM blood_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("requestRepo.GetByID: %w", err)
	}
	return br, nil
}

// List returns every request, newest first.
func (r *RequestRepository) List(ctx context.Context) ([]model.BloodRequest, error) {
	defer logger.DeferLogDuration("request.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestCols+` FROM blood_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("requestRepo.List query: %w", err)
	}
	defer rows.Close()

	var out []model.BloodRequest
	for rows.Next() {
		br, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("requestRepo.List scan: %w", err)
		}
		out = append(out, *br)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("requestRepo.List rows: %w", err)
	}
	return out, nil
}

// Accept moves a pending request to Accepted. The status check is part of
// the UPDATE so two donors racing to accept resolve to a single winner.
func (r *RequestRepository) Accept(ctx context.Context, id, donorID string) error {
	defer logger.DeferLogDuration("request.Accept", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE blood_requests SET status = $1, accepted_by = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		model.RequestStatusAccepted, donorID, id, model.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("requestRepo.Accept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return request.ErrNotPending
	}
	return nil
}

func (r *RequestRepository) Cancel(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("request.Cancel", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE blood_requests SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3`,
		model.RequestStatusCancelled, id, model.RequestStatusPending,
	)
	if err != nil {
		return fmt.Errorf("requestRepo.Cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return request.ErrNotPending
	}
	return nil
}
