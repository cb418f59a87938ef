package store

import (
	"context"
	"errors"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

// ErrNotFound is returned by Get when no record exists for the user.
var ErrNotFound = errors.New("user not found")

// Mutator applies a field-level change to a record. It runs against the current
// stored state, never a caller's stale copy.
type Mutator func(u *domain.UserRecord)

// Repo defines storage operations for user records.
// Every mutating call is durable before it returns; on failure nothing is changed.
// Returned records are copies.
type Repo interface {
	Get(ctx context.Context, userID string) (*domain.UserRecord, error)
	// Upsert creates the record with defaults if absent, applies mutate, persists, and
	// returns the stored result.
	Upsert(ctx context.Context, userID string, mutate Mutator) (*domain.UserRecord, error)
	// All returns every record ordered by user id.
	All(ctx context.Context) ([]domain.Entry, error)
	// Persist flushes the full record set to durable storage.
	Persist(ctx context.Context) error
	Close() error
}
