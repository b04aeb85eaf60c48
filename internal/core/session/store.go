package session

import (
	"context"
	"errors"
)

// Sentinel errors for session operations.
var (
	ErrNotFound         = errors.New("session not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingToken     = errors.New("missing access token")
	ErrUnknownEvent     = errors.New("unknown event type")
)

// Store persists the last known session.
type Store interface {
	// Load returns the persisted record. Returns ErrNotFound if none exists.
	Load(ctx context.Context) (Record, error)
	// Save replaces the persisted record.
	Save(ctx context.Context, r Record) error
	// Delete removes the persisted record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}
