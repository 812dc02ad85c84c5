// Package scoring tracks which challenges are completed and the points
// awarded for them.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/secretlab/internal/domain"
	"github.com/ashureev/secretlab/internal/store"
)

// Progress is the number of completed enabled challenges.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// String renders progress as "completed/total".
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total)
}

// Percent returns progress as a percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}

// Snapshot is the scorecard state published after every change.
type Snapshot struct {
	TotalPoints  int      `json:"total_points"`
	Progress     Progress `json:"progress"`
	AllCompleted bool     `json:"all_completed"`
	Challenge    string   `json:"challenge,omitempty"`
	Event        string   `json:"event,omitempty"`
	// Seq increases with every mutation; later snapshots supersede earlier ones.
	Seq          uint64   `json:"seq"`
}

// Events.
const (
	EventCompleted = "completed"
	EventReset     = "reset"
)

// ScoreCard is the exclusive owner of solved state. All mutations are
// serialized by a single mutex, including the write to the repository.
type ScoreCard struct {
	mu       sync.Mutex
	repo     store.Repository
	entries  map[string]domain.ScoreEntry
	enabled  map[string]bool
	listener func(Snapshot)
	seq      uint64
	now      func() time.Time
}

// New creates a scorecard for the given challenges and loads persisted entries.
func New(ctx context.Context, repo store.Repository, challenges []*domain.Challenge) (*ScoreCard, error) {
	entries, err := repo.LoadScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scorecard: %w", err)
	}

	enabled := make(map[string]bool, len(challenges))
	for _, c := range challenges {
		enabled[c.Name] = c.Enabled
	}

	slog.Info("Scorecard loaded", "entries", len(entries), "challenges", len(challenges))
	return &ScoreCard{
		repo:    repo,
		entries: entries,
		enabled: enabled,
		now:     time.Now,
	}, nil
}

// OnChange registers a listener called after every mutation.
func (s *ScoreCard) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Complete marks the challenge completed. Points are only awarded on the
// first solve; firstSolve reports whether this call awarded them.
func (s *ScoreCard) Complete(ctx context.Context, c *domain.Challenge) (bool, error) {
	s.mu.Lock()
	if s.entries[c.Name].Completed {
		s.mu.Unlock()
		return false, nil
	}

	entry := domain.ScoreEntry{Completed: true, Points: c.Points, CompletedAt: s.now()}
	if err := s.repo.SaveScore(ctx, c.Name, entry); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("complete %s: %w", c.Name, err)
	}
	s.entries[c.Name] = entry
	s.seq++
	snap, listener := s.snapshotLocked(c.Name, EventCompleted), s.listener
	s.mu.Unlock()

	slog.Info("Challenge completed", "challenge", c.Name, "points", c.Points)
	if listener != nil {
		listener(snap)
	}
	return true, nil
}

// Reset clears the entry for the challenge. Resetting a challenge that was
// never started is a no-op.
func (s *ScoreCard) Reset(ctx context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	if _, ok := s.entries[c.Name]; !ok {
		s.mu.Unlock()
		return nil
	}

	if err := s.repo.DeleteScore(ctx, c.Name); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reset %s: %w", c.Name, err)
	}
	delete(s.entries, c.Name)
	s.seq++
	snap, listener := s.snapshotLocked(c.Name, EventReset), s.listener
	s.mu.Unlock()

	slog.Info("Challenge reset", "challenge", c.Name)
	if listener != nil {
		listener(snap)
	}
	return nil
}

// Completed reports whether the challenge is completed.
func (s *ScoreCard) Completed(c *domain.Challenge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[c.Name].Completed
}

// Entry returns the entry for the challenge.
func (s *ScoreCard) Entry(c *domain.Challenge) domain.ScoreEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[c.Name]
}

// TotalReceivedPoints sums the points of every completed entry.
func (s *ScoreCard) TotalReceivedPoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

// Progress counts completed challenges among the enabled ones.
func (s *ScoreCard) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

// Snapshot returns the current state.
func (s *ScoreCard) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("", "")
}

func (s *ScoreCard) totalLocked() int {
	total := 0
	for _, e := range s.entries {
		if e.Completed {
			total += e.Points
		}
	}
	return total
}

func (s *ScoreCard) progressLocked() Progress {
	var p Progress
	for name, enabled := range s.enabled {
		if !enabled {
			continue
		}
		p.Total++
		if s.entries[name].Completed {
			p.Completed++
		}
	}
	return p
}

func (s *ScoreCard) snapshotLocked(challenge, event string) Snapshot {
	p := s.progressLocked()
	return Snapshot{
		TotalPoints:  s.totalLocked(),
		Progress:     p,
		AllCompleted: p.Completed == p.Total,
		Challenge:    challenge,
		Event:        event,
		Seq:          s.seq,
	}
}
