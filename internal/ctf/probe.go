package ctf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRemoteUnavailable is returned when the CTF host cannot be reached.
var ErrRemoteUnavailable = errors.New("ctf server unavailable")

// Remote checks that the remote CTF host is reachable.
type Remote interface {
	Reachable(ctx context.Context) error
}

// HTTPProbe issues a GET against the CTF host.
type HTTPProbe struct {
	address string
	client  *http.Client
}

// NewHTTPProbe creates a probe with the given timeout.
func NewHTTPProbe(address string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		address: address,
		client:  &http.Client{Timeout: timeout},
	}
}

// Reachable returns nil when the host answers with a non-5xx status.
func (p *HTTPProbe) Reachable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.address, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}
