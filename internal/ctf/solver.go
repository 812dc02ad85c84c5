package ctf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/secretlab/internal/domain"
)

// Messages shown to the player.
const (
	MsgCorrect   = "Your answer is correct!"
	MsgIncorrect = "Your answer is incorrect, try harder ;-)"
	MsgDisabled  = "This challenge has been disabled."
)

// Mode selects how correct answers are reported.
type Mode int

const (
	// ModePlain marks correct answers locally.
	ModePlain Mode = iota
	// ModeCTF additionally hands the player proof for the CTF platform.
	ModeCTF
)

func (m Mode) String() string {
	if m == ModeCTF {
		return "ctf"
	}
	return "plain"
}

// Recorder stores completions. scoring.ScoreCard implements it.
type Recorder interface {
	Complete(ctx context.Context, c *domain.Challenge) (bool, error)
}

// Outcome fills the result slots of the challenge view. At most one of
// Correct, Incorrect and Disabled is set.
type Outcome struct {
	Correct    string
	Incorrect  string
	Disabled   string
	Notice     string
	FirstSolve bool
}

// Options configure a Solver.
type Options struct {
	Mode          Mode
	ServerAddress string // empty when no remote CTF host is configured
	HostValue     string // empty when not configured
	Deriver       TokenDeriver
	Remote        Remote
	RemoteTimeout time.Duration
}

// Solver validates submissions. Its mode is fixed at construction.
type Solver struct {
	opts     Options
	recorder Recorder
}

// NewSolver creates a solver.
func NewSolver(recorder Recorder, opts Options) *Solver {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 3 * time.Second
	}
	return &Solver{opts: opts, recorder: recorder}
}

// Mode returns the solver's mode.
func (s *Solver) Mode() Mode {
	return s.opts.Mode
}

// Solve checks the submission and records a completion when it is correct.
// The returned error only reports a failure to record the completion.
func (s *Solver) Solve(ctx context.Context, form domain.ChallengeForm, c *domain.Challenge) (Outcome, error) {
	if !c.Enabled {
		return Outcome{Disabled: MsgDisabled}, nil
	}
	if !c.CheckAnswer(form.Solution) {
		slog.Debug("Incorrect answer", "challenge", c.Name)
		return Outcome{Incorrect: MsgIncorrect}, nil
	}

	first, err := s.recorder.Complete(ctx, c)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Correct: MsgCorrect, FirstSolve: first}
	if s.opts.Mode == ModeCTF {
		s.ctfOutcome(ctx, c, &out)
	}
	return out, nil
}

func (s *Solver) ctfOutcome(ctx context.Context, c *domain.Challenge, out *Outcome) {
	if s.opts.ServerAddress == "" {
		// Only the entry challenge hands out a platform code.
		if !c.Entry {
			return
		}
		token, err := s.DeriveCtfToken(c)
		if err != nil {
			slog.Error("Failed to derive CTF token", "challenge", c.Name, "error", err)
			out.Notice = "Could not generate the CTF code for this challenge, please contact the organizers."
			return
		}
		out.Correct = MsgCorrect + " fill in the following code in CTF scoring: " + token
		return
	}

	out.Correct = MsgCorrect + " fill in the same answer in the ctf-instance of the app: " + s.opts.ServerAddress
	if c.ProvidesHostValue && s.opts.HostValue != "" {
		out.Correct = MsgCorrect + " fill in the following answer in the CTF instance: " + s.opts.HostValue
	}

	if s.opts.Remote == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
	defer cancel()
	if err := s.opts.Remote.Reachable(probeCtx); err != nil {
		slog.Warn("CTF server unreachable", "address", s.opts.ServerAddress, "error", err)
		out.Notice = fmt.Sprintf("Could not reach CTF server at %s, please try again later.", s.opts.ServerAddress)
	}
}

// DeriveCtfToken returns the CTF platform code for the challenge.
func (s *Solver) DeriveCtfToken(c *domain.Challenge) (string, error) {
	if s.opts.Deriver == nil {
		return "", ErrNoKey
	}
	return s.opts.Deriver.DeriveCtfToken(c)
}
