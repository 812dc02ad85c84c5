package domain

import "time"

// ScoreEntry is the persisted completion state of a single challenge.
type ScoreEntry struct {
	Completed   bool      `json:"completed"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completed_at"`
}
