package ctf

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/secretlab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSecret string

func (s fixedSecret) Check(answer string) bool { return answer == string(s) }
func (s fixedSecret) Spoiler() string          { return string(s) }

type fakeRecorder struct {
	completed map[string]bool
	err       error
	calls     int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{completed: make(map[string]bool)}
}

func (f *fakeRecorder) Complete(_ context.Context, c *domain.Challenge) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.completed[c.Name] {
		return false, nil
	}
	f.completed[c.Name] = true
	return true, nil
}

type fakeRemote struct{ err error }

func (f fakeRemote) Reachable(context.Context) error { return f.err }

func challenge(name, answer string) *domain.Challenge {
	return domain.NewChallenge(1, name, fixedSecret(answer))
}

func TestSolvePlain(t *testing.T) {
	rec := newFakeRecorder()
	s := NewSolver(rec, Options{Mode: ModePlain})
	c := challenge("challenge-1", "right")

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "wrong"}, c)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Incorrect: MsgIncorrect}, out)
	assert.Equal(t, 0, rec.calls)

	out, err = s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, c)
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect, out.Correct)
	assert.True(t, out.FirstSolve)

	out, err = s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, c)
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect, out.Correct)
	assert.False(t, out.FirstSolve)
}

func TestSolveEmptySubmissionIsIncorrect(t *testing.T) {
	s := NewSolver(newFakeRecorder(), Options{})
	out, err := s.Solve(context.Background(), domain.ChallengeForm{}, challenge("challenge-1", ""))
	require.NoError(t, err)
	assert.Equal(t, MsgIncorrect, out.Incorrect)
}

func TestSolveDisabledShortCircuits(t *testing.T) {
	rec := newFakeRecorder()
	s := NewSolver(rec, Options{Mode: ModeCTF})
	c := challenge("challenge-1", "right")
	c.Enabled = false

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, c)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Disabled: MsgDisabled}, out)
	assert.Equal(t, 0, rec.calls)
}

func TestSolveRecorderError(t *testing.T) {
	rec := newFakeRecorder()
	rec.err = errors.New("store down")
	s := NewSolver(rec, Options{})

	_, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, challenge("challenge-1", "right"))
	require.Error(t, err)
}

func entryChallenge(name, answer string) *domain.Challenge {
	c := domain.NewChallenge(0, name, fixedSecret(answer))
	c.Entry = true
	return c
}

func TestSolveCTFWithoutServerGivesToken(t *testing.T) {
	s := NewSolver(newFakeRecorder(), Options{Mode: ModeCTF, Deriver: HMACDeriver{Key: "k"}})
	c := entryChallenge("challenge-1", "right")

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, c)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("k"))
	mac.Write([]byte("challenge-1"))
	want := hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, MsgCorrect+" fill in the following code in CTF scoring: "+want, out.Correct)
}

func TestSolveCTFWithoutServerOtherChallengesGetNoToken(t *testing.T) {
	rec := newFakeRecorder()
	s := NewSolver(rec, Options{Mode: ModeCTF, Deriver: HMACDeriver{Key: "k"}})
	c := domain.NewChallenge(3, "challenge-3", fixedSecret("right"))

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, c)
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect, out.Correct)
	assert.Empty(t, out.Notice)
	assert.True(t, rec.completed["challenge-3"])
}

func TestSolveCTFWithoutKeyAddsNotice(t *testing.T) {
	s := NewSolver(newFakeRecorder(), Options{Mode: ModeCTF})
	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, entryChallenge("challenge-0", "right"))
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect, out.Correct)
	assert.NotEmpty(t, out.Notice)
}

func TestSolveCTFWithServer(t *testing.T) {
	s := NewSolver(newFakeRecorder(), Options{
		Mode:          ModeCTF,
		ServerAddress: "https://ctf.example.org",
		HostValue:     "host-value",
		Remote:        fakeRemote{},
	})

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, challenge("challenge-1", "right"))
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect+" fill in the same answer in the ctf-instance of the app: https://ctf.example.org", out.Correct)
	assert.Empty(t, out.Notice)

	host := challenge("challenge-8", "right")
	host.ProvidesHostValue = true
	out, err = s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, host)
	require.NoError(t, err)
	assert.Equal(t, MsgCorrect+" fill in the following answer in the CTF instance: host-value", out.Correct)
}

func TestSolveCTFServerUnreachable(t *testing.T) {
	rec := newFakeRecorder()
	s := NewSolver(rec, Options{
		Mode:          ModeCTF,
		ServerAddress: "https://ctf.example.org",
		Remote:        fakeRemote{err: ErrRemoteUnavailable},
	})

	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, challenge("challenge-1", "right"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Correct, MsgCorrect))
	assert.Contains(t, out.Notice, "Could not reach CTF server at https://ctf.example.org")
	assert.True(t, rec.completed["challenge-1"])
}

func TestSolveCTFProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewSolver(newFakeRecorder(), Options{
		Mode:          ModeCTF,
		ServerAddress: srv.URL,
		Remote:        NewHTTPProbe(srv.URL, time.Second),
		RemoteTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	out, err := s.Solve(context.Background(), domain.ChallengeForm{Solution: "right"}, challenge("challenge-1", "right"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, out.Notice, "Could not reach CTF server")
}

func TestHTTPProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ok.Close()
	require.NoError(t, NewHTTPProbe(ok.URL, time.Second).Reachable(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	err := NewHTTPProbe(broken.URL, time.Second).Reachable(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))

	err = NewHTTPProbe("://bad", time.Second).Reachable(context.Background())
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestVerifyCtfToken(t *testing.T) {
	d := HMACDeriver{Key: "key"}
	c := challenge("challenge-0", "x")

	token, err := d.DeriveCtfToken(c)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, VerifyCtfToken(d, c, token))
	assert.False(t, VerifyCtfToken(d, c, "nope"))
	assert.False(t, VerifyCtfToken(HMACDeriver{}, c, token))

	other, err := HMACDeriver{Key: "other"}.DeriveCtfToken(c)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenDeriverFunc(t *testing.T) {
	s := NewSolver(newFakeRecorder(), Options{
		Mode:    ModeCTF,
		Deriver: TokenDeriverFunc(func(c *domain.Challenge) (string, error) { return "flag{" + c.Name + "}", nil }),
	})
	token, err := s.DeriveCtfToken(challenge("challenge-3", "x"))
	require.NoError(t, err)
	assert.Equal(t, "flag{challenge-3}", token)
	assert.Equal(t, "ctf", s.Mode().String())
}
