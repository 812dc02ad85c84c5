// Package catalog loads the challenge definitions and assembles the ordered,
// immutable challenge sequence at startup.
package catalog

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/secretlab/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed challenges.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Definition is a single challenge entry in the catalog file.
type Definition struct {
	Name              string   `yaml:"name"`
	Title             string   `yaml:"title"`
	Points            int      `yaml:"points"`
	Enabled           *bool    `yaml:"enabled"`
	Entry             bool     `yaml:"entry"`
	ProvidesHostValue bool     `yaml:"provides_host_value"`
	GenerateAnswer    bool     `yaml:"generate_answer"`
	Environments      []string `yaml:"environments"`
	Answer            string   `yaml:"answer"`
	AnswerEnv         string   `yaml:"answer_env"`
	Explanation       string   `yaml:"explanation"`
	Hint              string   `yaml:"hint"`
	Reason            string   `yaml:"reason"`
}

// Catalog is the parsed catalog file.
type Catalog struct {
	Challenges []Definition `yaml:"challenges"`
}

// Runtime decides whether a challenge can run in the current environment.
type Runtime interface {
	CanRun(c *domain.Challenge) bool
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("Failed to close catalog file", "path", path, "error", closeErr)
		}
	}()
	return Parse(f)
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Parse decodes and validates a catalog.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cat Catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks names, points and environments.
func (c *Catalog) Validate() error {
	if len(c.Challenges) == 0 {
		return fmt.Errorf("%w: no challenges defined", ErrInvalidCatalog)
	}
	seen := make(map[string]bool, len(c.Challenges))
	entries := 0
	for i, def := range c.Challenges {
		if def.Name == "" {
			return fmt.Errorf("%w: challenge %d has no name", ErrInvalidCatalog, i)
		}
		if seen[def.Name] {
			return fmt.Errorf("%w: duplicate challenge %q", ErrInvalidCatalog, def.Name)
		}
		seen[def.Name] = true
		if def.Points < 0 {
			return fmt.Errorf("%w: challenge %q has negative points", ErrInvalidCatalog, def.Name)
		}
		for _, env := range def.Environments {
			if _, err := domain.ParseEnvironmentKind(env); err != nil {
				return fmt.Errorf("%w: challenge %q: %v", ErrInvalidCatalog, def.Name, err)
			}
		}
		if def.Entry {
			entries++
		}
	}
	if entries > 1 {
		return fmt.Errorf("%w: more than one entry challenge", ErrInvalidCatalog)
	}
	return nil
}

// BuildOptions controls how definitions become challenges.
type BuildOptions struct {
	Runtime   Runtime
	LookupEnv func(string) (string, bool)
}

// Build assembles the ordered challenge sequence. A challenge is enabled when
// its definition allows it and the runtime can run it.
func (c *Catalog) Build(opts BuildOptions) ([]*domain.ChallengeUI, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	out := make([]*domain.ChallengeUI, 0, len(c.Challenges))
	for i, def := range c.Challenges {
		answer := def.Answer
		if def.AnswerEnv != "" {
			if v, ok := lookup(def.AnswerEnv); ok && v != "" {
				answer = v
			}
		}
		if answer == "" && def.GenerateAnswer {
			generated, err := generateAnswer()
			if err != nil {
				return nil, fmt.Errorf("challenge %q: %w", def.Name, err)
			}
			answer = generated
			slog.Info("Generated challenge secret", "challenge", def.Name, "secret", answer)
		}

		ch := domain.NewChallenge(i, def.Name, &StaticSecret{Answer: answer})
		ch.Title = def.Title
		ch.Points = def.Points
		ch.Entry = def.Entry
		ch.ProvidesHostValue = def.ProvidesHostValue
		for _, env := range def.Environments {
			kind, _ := domain.ParseEnvironmentKind(env)
			ch.RequiredEnvironments = append(ch.RequiredEnvironments, kind)
		}

		enabled := def.Enabled == nil || *def.Enabled
		if enabled && opts.Runtime != nil && !opts.Runtime.CanRun(ch) {
			slog.Info("Challenge disabled for this runtime", "challenge", def.Name, "requires", def.Environments)
			enabled = false
		}
		ch.Enabled = enabled

		out = append(out, &domain.ChallengeUI{
			Challenge:   ch,
			Explanation: strings.TrimSpace(def.Explanation),
			Hint:        strings.TrimSpace(def.Hint),
			Reason:      strings.TrimSpace(def.Reason),
		})
	}
	return out, nil
}

func generateAnswer() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// StaticSecret checks submissions against a fixed answer.
type StaticSecret struct {
	Answer string
}

// Check compares the trimmed submission in constant time.
func (s *StaticSecret) Check(answer string) bool {
	if s.Answer == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(answer)), []byte(s.Answer)) == 1
}

// Spoiler returns the answer.
func (s *StaticSecret) Spoiler() string {
	return s.Answer
}
