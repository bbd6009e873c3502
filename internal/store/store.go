// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/linguapolis/internal/domain"
)

// ErrNotFound is returned when a requested slot does not exist.
var ErrNotFound = errors.New("store: not found")

// Repository defines the interface for persisting devices and their save slots.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetIdleUsers retrieves users inactive for longer than ttl.
	GetIdleUsers(ctx context.Context, ttl time.Duration) ([]*domain.User, error)

	// DeleteUser removes a user and all of their save slots.
	DeleteUser(ctx context.Context, userID string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	Slots
}

// Slots is a per-user key-value area holding opaque blobs.
type Slots interface {
	// GetSlot returns the blob stored under key, or ErrNotFound.
	GetSlot(ctx context.Context, userID, key string) ([]byte, error)

	// PutSlot overwrites the blob stored under key.
	PutSlot(ctx context.Context, userID, key string, payload []byte) error

	// DeleteSlot removes the blob under key. Deleting a missing slot is not an error.
	DeleteSlot(ctx context.Context, userID, key string) error
}
