package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/secretlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindRuntime domain.EnvironmentKind

func (k kindRuntime) CanRun(c *domain.Challenge) bool {
	for _, env := range c.RequiredEnvironments {
		if env.Rank() <= domain.EnvironmentKind(k).Rank() {
			return true
		}
	}
	return len(c.RequiredEnvironments) == 0
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, cat.Challenges)

	challenges, err := cat.Build(BuildOptions{Runtime: kindRuntime(domain.EnvDocker), LookupEnv: noEnv})
	require.NoError(t, err)
	require.Len(t, challenges, len(cat.Challenges))

	first := challenges[0].Challenge
	assert.Equal(t, 0, first.ID)
	assert.True(t, first.Entry)
	assert.True(t, first.CheckAnswer("The first answer"))

	for i, ui := range challenges {
		assert.Equal(t, i, ui.Challenge.ID)
		assert.NotEmpty(t, ui.Explanation, ui.Challenge.Name)
	}
}

func TestBuildDisablesUnrunnableChallenges(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	docker, err := cat.Build(BuildOptions{Runtime: kindRuntime(domain.EnvDocker), LookupEnv: noEnv})
	require.NoError(t, err)
	aws, err := cat.Build(BuildOptions{Runtime: kindRuntime(domain.EnvAWS), LookupEnv: noEnv})
	require.NoError(t, err)

	for i := range docker {
		needsCluster := docker[i].Challenge.RequiredEnvironments[0] != domain.EnvDocker
		assert.Equal(t, !needsCluster, docker[i].IsChallengeEnabled(), docker[i].Challenge.Name)
		assert.True(t, aws[i].IsChallengeEnabled(), aws[i].Challenge.Name)
	}
}

func TestBuildAnswerFromEnvironment(t *testing.T) {
	cat, err := Parse(strings.NewReader(`
challenges:
  - name: env-backed
    answer: fallback
    answer_env: MY_SECRET
`))
	require.NoError(t, err)

	lookup := func(key string) (string, bool) {
		if key == "MY_SECRET" {
			return "from-env", true
		}
		return "", false
	}
	challenges, err := cat.Build(BuildOptions{LookupEnv: lookup})
	require.NoError(t, err)

	c := challenges[0].Challenge
	assert.True(t, c.CheckAnswer("from-env"))
	assert.True(t, c.CheckAnswer("  from-env\n"))
	assert.False(t, c.CheckAnswer("fallback"))
	assert.Equal(t, "from-env", c.Spoiler().Solution)
}

func TestBuildGeneratedAnswer(t *testing.T) {
	cat, err := Parse(strings.NewReader(`
challenges:
  - name: random
    generate_answer: true
`))
	require.NoError(t, err)

	a, err := cat.Build(BuildOptions{LookupEnv: noEnv})
	require.NoError(t, err)
	b, err := cat.Build(BuildOptions{LookupEnv: noEnv})
	require.NoError(t, err)

	secretA := a[0].Challenge.Spoiler().Solution
	assert.Len(t, secretA, 32)
	assert.NotEqual(t, secretA, b[0].Challenge.Spoiler().Solution)
	assert.True(t, a[0].Challenge.CheckAnswer(secretA))
}

func TestExplicitlyDisabled(t *testing.T) {
	cat, err := Parse(strings.NewReader(`
challenges:
  - name: off
    enabled: false
    answer: x
`))
	require.NoError(t, err)

	challenges, err := cat.Build(BuildOptions{LookupEnv: noEnv})
	require.NoError(t, err)
	assert.False(t, challenges[0].IsChallengeEnabled())
	assert.False(t, challenges[0].Challenge.CheckAnswer("x"))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":       "challenges: []\n",
		"no name":     "challenges:\n  - title: x\n",
		"duplicate":   "challenges:\n  - name: a\n  - name: a\n",
		"bad env":     "challenges:\n  - name: a\n    environments: [MAINFRAME]\n",
		"two entries": "challenges:\n  - name: a\n    entry: true\n  - name: b\n    entry: true\n",
		"negative":    "challenges:\n  - name: a\n    points: -1\n",
	}
	for name, doc := range cases {
		_, err := Parse(strings.NewReader(doc))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvalidCatalog), "%s: %v", name, err)
	}

	_, err := Parse(strings.NewReader("challenges:\n  - name: a\n    unknown_field: 1\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("challenges:\n  - name: only\n    answer: yes\n"), 0o600))

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Challenges, 1)
	assert.Equal(t, "only", cat.Challenges[0].Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestStaticSecret(t *testing.T) {
	s := &StaticSecret{Answer: "abc"}
	assert.True(t, s.Check("abc"))
	assert.False(t, s.Check("abcd"))

	empty := &StaticSecret{}
	assert.False(t, empty.Check(""))
}
