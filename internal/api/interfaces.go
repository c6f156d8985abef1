package api

import (
	"context"

	"github.com/google/uuid"

	"tripweaver/internal/itinerary"
	"tripweaver/internal/storage"
)

// UserStore defines the account operations needed by handlers.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, plan string) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

// TripStore defines the trip persistence operations needed by handlers.
type TripStore interface {
	CreateTrip(ctx context.Context, t *itinerary.Trip) error
	GetTrip(ctx context.Context, id int, userID uuid.UUID) (*itinerary.Trip, error)
	UpdateTripDays(ctx context.Context, id int, userID uuid.UUID, days []itinerary.TripDay) error
	SetTripArchived(ctx context.Context, id int, userID uuid.UUID, archived bool) error
	DeleteTrip(ctx context.Context, id int, userID uuid.UUID) error
	ListTrips(ctx context.Context, userID uuid.UUID, archived bool) ([]*itinerary.Trip, error)
	CountActiveTrips(ctx context.Context, userID uuid.UUID) (int, error)
	TopDestinations(ctx context.Context, limit int) ([]storage.DestinationCount, error)
}

// Enricher attaches weather context to freshly generated days.
type Enricher interface {
	Enrich(ctx context.Context, days []itinerary.TripDay, destination string) []itinerary.TripDay
}
