// Package domain contains core domain types for the secretlab application.
package domain

import (
	"errors"
	"strings"
)

// ErrChallengeNotFound is returned when a challenge id is outside the catalog.
var ErrChallengeNotFound = errors.New("challenge not found")

// Secret is the per-challenge capability that decides whether an answer is
// correct and what the disclosed solution looks like.
type Secret interface {
	Check(answer string) bool
	Spoiler() string
}

// Challenge represents one vulnerability exercise.
type Challenge struct {
	ID                   int
	Name                 string
	Title                string
	Points               int
	Enabled              bool
	Entry                bool
	ProvidesHostValue    bool
	RequiredEnvironments []EnvironmentKind

	secret Secret
}

// NewChallenge creates a challenge backed by the given secret.
func NewChallenge(id int, name string, secret Secret) *Challenge {
	return &Challenge{
		ID:      id,
		Name:    name,
		Enabled: true,
		secret:  secret,
	}
}

// CheckAnswer reports whether the submission solves the challenge.
// Disabled challenges and blank submissions never evaluate.
func (c *Challenge) CheckAnswer(answer string) bool {
	if !c.Enabled || c.secret == nil {
		return false
	}
	if strings.TrimSpace(answer) == "" {
		return false
	}
	return c.secret.Check(answer)
}

// Spoiler returns the disclosed solution for the challenge.
func (c *Challenge) Spoiler() Spoiler {
	if c.secret == nil {
		return Spoiler{}
	}
	return Spoiler{Solution: c.secret.Spoiler()}
}

// FirstRequiredEnvironment returns the first declared environment kind.
func (c *Challenge) FirstRequiredEnvironment() (EnvironmentKind, bool) {
	if len(c.RequiredEnvironments) == 0 {
		return "", false
	}
	return c.RequiredEnvironments[0], true
}

// ChallengeUI pairs a challenge with its display metadata.
type ChallengeUI struct {
	Challenge   *Challenge
	Explanation string
	Hint        string
	Reason      string
}

// IsChallengeEnabled reports whether the wrapped challenge is enabled.
func (u *ChallengeUI) IsChallengeEnabled() bool {
	return u.Challenge != nil && u.Challenge.Enabled
}

// ChallengeForm is the raw answer submitted for a challenge.
type ChallengeForm struct {
	Solution string `json:"solution"`
}

// Spoiler is either the disclosed solution or a policy refusal message.
type Spoiler struct {
	Solution string `json:"solution"`
}
