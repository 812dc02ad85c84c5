// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/secretlab/internal/domain"
)

// Repository defines the interface for persisting scorecard entries.
// Entries are keyed by challenge name so they survive catalog reordering.
type Repository interface {
	// LoadScores returns every persisted entry.
	LoadScores(ctx context.Context) (map[string]domain.ScoreEntry, error)

	// SaveScore creates or replaces the entry for a challenge.
	SaveScore(ctx context.Context, challenge string, entry domain.ScoreEntry) error

	// DeleteScore removes the entry for a challenge. Deleting a missing
	// entry is not an error.
	DeleteScore(ctx context.Context, challenge string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
