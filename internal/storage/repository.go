package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripweaver/internal/itinerary"
)

// ErrEmailTaken is returned by CreateUser when the email already has an
// account.
var ErrEmailTaken = errors.New("email already registered")

// ErrTripNotFound is returned by trip mutations when no active trip matches
// the id and owner.
var ErrTripNotFound = errors.New("trip not found")

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// User is an account row. Plan gates entitlements (free, pro, premium).
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Plan         string
	CreatedAt    time.Time
}

// DestinationCount is one row of the trending-destinations aggregate.
type DestinationCount struct {
	Destination string `json:"destination"`
	Trips       int    `json:"trips"`
}

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for user and trip records.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// CreateUser inserts an account and returns the stored row.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash, plan string) (*User, error) {
	const q = `
		INSERT INTO users (email, password_hash, plan)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	u := User{Email: email, PasswordHash: passwordHash, Plan: plan}
	err := r.q.QueryRow(ctx, q, email, passwordHash, plan).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("inserting user %s: %w", email, err)
	}

	return &u, nil
}

// GetUserByEmail retrieves an account by email.
// Returns nil, nil when no account exists.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
		SELECT id, email, password_hash, plan, created_at
		FROM users
		WHERE email = $1
	`

	var u User
	err := r.q.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Plan, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	return &u, nil
}

// GetUserByID retrieves an account by id. Returns nil, nil when missing.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const q = `
		SELECT id, email, password_hash, plan, created_at
		FROM users
		WHERE id = $1
	`

	var u User
	err := r.q.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Plan, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}

	return &u, nil
}

// CreateTrip inserts a trip and fills its ID and timestamps in place.
// Preferences and days are stored as JSONB documents.
func (r *Repository) CreateTrip(ctx context.Context, t *itinerary.Trip) error {
	prefsJSON, err := json.Marshal(t.Preferences)
	if err != nil {
		return fmt.Errorf("marshaling trip preferences: %w", err)
	}
	daysJSON, err := json.Marshal(t.Days)
	if err != nil {
		return fmt.Errorf("marshaling trip days: %w", err)
	}

	const q = `
		INSERT INTO trips (user_id, title, destination, start_date, end_date,
			budget_per_person, party_size, preferences, days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, q,
		t.UserID, t.Title, t.Destination, t.StartDate, t.EndDate,
		t.BudgetPerPerson, t.PartySize, prefsJSON, daysJSON,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting trip for user %s: %w", t.UserID, err)
	}

	t.IsActive = true
	return nil
}

const tripColumns = `id, user_id, title, destination, start_date, end_date,
	budget_per_person, party_size, preferences, days,
	is_archived, is_active, created_at, updated_at`

// GetTrip retrieves an active trip by id, scoped to its owner.
// Returns nil, nil when the trip does not exist or belongs to someone else.
func (r *Repository) GetTrip(ctx context.Context, id int, userID uuid.UUID) (*itinerary.Trip, error) {
	q := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE id = $1 AND user_id = $2 AND is_active
	`

	t, err := scanTrip(r.q.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying trip %d: %w", id, err)
	}

	return t, nil
}

// UpdateTripDays replaces a trip's day documents wholesale.
func (r *Repository) UpdateTripDays(ctx context.Context, id int, userID uuid.UUID, days []itinerary.TripDay) error {
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("marshaling trip days: %w", err)
	}

	const q = `
		UPDATE trips
		SET days = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active
	`

	tag, err := r.q.Exec(ctx, q, id, userID, daysJSON)
	if err != nil {
		return fmt.Errorf("updating days for trip %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}

	return nil
}

// SetTripArchived flips a trip between the active list and the archive.
func (r *Repository) SetTripArchived(ctx context.Context, id int, userID uuid.UUID, archived bool) error {
	const q = `
		UPDATE trips
		SET is_archived = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active
	`

	tag, err := r.q.Exec(ctx, q, id, userID, archived)
	if err != nil {
		return fmt.Errorf("archiving trip %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}

	return nil
}

// DeleteTrip soft-deletes a trip. The row stays behind for the destination
// aggregates but drops out of every owner-facing query.
func (r *Repository) DeleteTrip(ctx context.Context, id int, userID uuid.UUID) error {
	const q = `
		UPDATE trips
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active
	`

	tag, err := r.q.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("deleting trip %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}

	return nil
}

// ListTrips returns the owner's active trips, archived or current depending
// on the flag, newest first.
func (r *Repository) ListTrips(ctx context.Context, userID uuid.UUID, archived bool) ([]*itinerary.Trip, error) {
	q := `
		SELECT ` + tripColumns + `
		FROM trips
		WHERE user_id = $1 AND is_active AND is_archived = $2
		ORDER BY created_at DESC
	`

	rows, err := r.q.Query(ctx, q, userID, archived)
	if err != nil {
		return nil, fmt.Errorf("querying trips for user %s: %w", userID, err)
	}
	defer rows.Close()

	var results []*itinerary.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trip row: %w", err)
		}
		results = append(results, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trip rows: %w", err)
	}

	return results, nil
}

// CountActiveTrips counts the owner's current (non-archived) trips. The
// free-plan trip limit is enforced against this number.
func (r *Repository) CountActiveTrips(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM trips
		WHERE user_id = $1 AND is_active AND NOT is_archived
	`

	var n int
	if err := r.q.QueryRow(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting trips for user %s: %w", userID, err)
	}

	return n, nil
}

// TopDestinations returns the most planned destinations across all users'
// active trips. The aggregate is anonymous.
func (r *Repository) TopDestinations(ctx context.Context, limit int) ([]DestinationCount, error) {
	const q = `
		SELECT destination, COUNT(*) AS trips
		FROM trips
		WHERE is_active
		GROUP BY destination
		ORDER BY trips DESC, destination ASC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top destinations: %w", err)
	}
	defer rows.Close()

	var results []DestinationCount
	for rows.Next() {
		var dc DestinationCount
		if err := rows.Scan(&dc.Destination, &dc.Trips); err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}
		results = append(results, dc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}

	return results, nil
}

// scanTrip reads one trip row, unmarshaling the JSONB documents.
func scanTrip(row pgx.Row) (*itinerary.Trip, error) {
	var t itinerary.Trip
	var prefsJSON, daysJSON []byte

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Destination,
		&t.StartDate,
		&t.EndDate,
		&t.BudgetPerPerson,
		&t.PartySize,
		&prefsJSON,
		&daysJSON,
		&t.IsArchived,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(prefsJSON, &t.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshaling preferences for trip %d: %w", t.ID, err)
	}
	if err := json.Unmarshal(daysJSON, &t.Days); err != nil {
		return nil, fmt.Errorf("unmarshaling days for trip %d: %w", t.ID, err)
	}

	return &t, nil
}
