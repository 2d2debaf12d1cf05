package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
)

var ErrTokenTimeout = errors.New("token acquisition timed out")

const (
	keyringService = "nuvyx"
	keyringUser    = "session-token"
)

// StaticTokenSource always returns the same token. An empty token means logged out.
type StaticTokenSource string

func (s StaticTokenSource) Authenticated() bool {
	return s != ""
}

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("not logged in")
	}
	return string(s), nil
}

// KeyringTokenSource reads the session token saved by SaveToken from the OS keyring.
type KeyringTokenSource struct{}

func (KeyringTokenSource) Authenticated() bool {
	token, err := keyring.Get(keyringService, keyringUser)
	return err == nil && token != ""
}

func (KeyringTokenSource) Token(context.Context) (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		return "", fmt.Errorf("read token from keyring: %w", err)
	}
	return token, nil
}

// SaveToken persists token to the OS keyring.
func SaveToken(token string) error {
	return keyring.Set(keyringService, keyringUser, strings.TrimSpace(token))
}

// DeleteToken removes the saved token. Removing a missing token is not an error.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// TokenSource mirrors the interface the playback session consumes.
type TokenSource interface {
	Authenticated() bool
	Token(ctx context.Context) (string, error)
}

type TimeoutSource struct {
	src     TokenSource
	timeout time.Duration
}

// WithTimeout bounds every Token call on src by timeout, returning ErrTokenTimeout when it
// elapses.
func WithTimeout(src TokenSource, timeout time.Duration) *TimeoutSource {
	return &TimeoutSource{src: src, timeout: timeout}
}

func (t *TimeoutSource) Authenticated() bool {
	return t.src.Authenticated()
}

func (t *TimeoutSource) Token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := t.src.Token(ctx)
		done <- result{token, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}
	if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w after %s", ErrTokenTimeout, t.timeout)
	}
	return r.token, r.err
}
