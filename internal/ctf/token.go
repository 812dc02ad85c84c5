// Package ctf implements answer validation for plain and CTF mode.
package ctf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/ashureev/secretlab/internal/domain"
)

// ErrNoKey is returned when a token is requested without a key.
var ErrNoKey = errors.New("ctf key not configured")

// TokenDeriver produces the code a player submits to the external CTF
// platform after solving a challenge.
type TokenDeriver interface {
	DeriveCtfToken(c *domain.Challenge) (string, error)
}

// TokenDeriverFunc adapts a function to TokenDeriver.
type TokenDeriverFunc func(c *domain.Challenge) (string, error)

// DeriveCtfToken calls f.
func (f TokenDeriverFunc) DeriveCtfToken(c *domain.Challenge) (string, error) {
	return f(c)
}

// HMACDeriver derives hex(HMAC-SHA256(key, challenge name)).
type HMACDeriver struct {
	Key string
}

// DeriveCtfToken implements TokenDeriver.
func (d HMACDeriver) DeriveCtfToken(c *domain.Challenge) (string, error) {
	if d.Key == "" {
		return "", ErrNoKey
	}
	mac := hmac.New(sha256.New, []byte(d.Key))
	mac.Write([]byte(c.Name))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyCtfToken reports whether token matches the derived token for c.
func VerifyCtfToken(d TokenDeriver, c *domain.Challenge, token string) bool {
	want, err := d.DeriveCtfToken(c)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(token))
}
