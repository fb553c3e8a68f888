package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// userCols is the SELECT list; order matches scanUser.
const userCols = `id, email, name, COALESCE(phone,''), password_hash, blood_group, gender, age, availability, latitude, longitude, last_donation_date, COALESCE(profile_image_url,''), created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// scanUser scans a row into model.User (order matches userCols).
// Location splits into nullable latitude/longitude columns.
func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	var lat, lon *float64
	var avail string
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &u.BloodGroup, &u.Gender, &u.Age,
		&avail, &lat, &lon, &u.LastDonationDate, &u.ProfileImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return err
	}
	u.Availability = model.NormalizeAvailability(model.Availability(avail))
	if lat != nil && lon != nil {
		u.Location = &geo.Coordinates{Latitude: *lat, Longitude: *lon}
	}
	return nil
}

func locationCols(loc *geo.Coordinates) (lat, lon *float64) {
	if loc == nil {
		return nil, nil
	}
	return &loc.Latitude, &loc.Longitude
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	lat, lon := locationCols(u.Location)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, phone, password_hash, blood_group, gender, age, availability, latitude, longitude, last_donation_date, profile_image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		u.ID, u.Email, u.Name, u.Phone, u.PasswordHash, u.BloodGroup, u.Gender, u.Age, u.Availability, lat, lon, u.LastDonationDate, u.ProfileImageURL, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByEmail", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}
	return u, nil
}

// Update overwrites the profile fields the owner can edit. Merge semantics:
// fields outside this list (password hash, email, timestamps other than
// updated_at) are preserved.
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Update", time.Now())()
	lat, lon := locationCols(u.Location)
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $1, phone = $2, blood_group = $3, gender = $4, age = $5, availability = $6,
		        latitude = $7, longitude = $8, last_donation_date = $9, profile_image_url = $10, updated_at = $11
		 WHERE id = $12`,
		u.Name, u.Phone, u.BloodGroup, u.Gender, u.Age, u.Availability, lat, lon, u.LastDonationDate, u.ProfileImageURL, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Update: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateAvailability(ctx context.Context, id string, a model.Availability, updatedAt time.Time) error {
	defer logger.DeferLogDuration("user.UpdateAvailability", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET availability = $1, updated_at = $2 WHERE id = $3`,
		a, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateAvailability: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLocation(ctx context.Context, id string, loc geo.Coordinates, updatedAt time.Time) error {
	defer logger.DeferLogDuration("user.UpdateLocation", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET latitude = $1, longitude = $2, updated_at = $3 WHERE id = $4`,
		loc.Latitude, loc.Longitude, updatedAt, id,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpdateLocation: %w", err)
	}
	return nil
}

// List returns every user; the donor listing is a projection of the full
// user collection, the ranking engine does the per-viewer work.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	defer logger.DeferLogDuration("user.List", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 64)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("userRepo.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.List rows: %w", err)
	}
	return users, nil
}

// ListByBloodGroup returns the ids of users with the given blood group,
// excluding one user (the requester of a broadcast request).
func (r *UserRepository) ListByBloodGroup(ctx context.Context, bloodGroup, excludeID string) ([]string, error) {
	defer logger.DeferLogDuration("user.ListByBloodGroup", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE blood_group = $1 AND id != $2`, bloodGroup, excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListByBloodGroup query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("userRepo.ListByBloodGroup scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userRepo.ListByBloodGroup rows: %w", err)
	}
	return ids, nil
}
