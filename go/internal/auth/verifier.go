// Package auth turns access tokens into account ids.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/zippy/go/clients"
)

var (
	// ErrInvalidToken is returned when the identity provider rejects a token.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing access token")
)

// UserLookup resolves a token with the identity provider.
// *clients.SupabaseClient satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (clients.SupabaseUser, error)
}

type cachedUser struct {
	id      string
	expires time.Time
}

// Verifier checks access tokens and remembers good ones for a short while
// so reconnect storms do not hammer the provider.
type Verifier struct {
	lookup UserLookup
	clock  clockwork.Clock
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cachedUser
}

func NewVerifier(lookup UserLookup, clock clockwork.Clock, ttl time.Duration) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{
		lookup: lookup,
		clock:  clock,
		ttl:    ttl,
		cache:  make(map[string]cachedUser),
	}
}

// NewSupabaseVerifier verifies against a Supabase project.
func NewSupabaseVerifier(baseURL, anonKey string) *Verifier {
	return NewVerifier(clients.NewSupabaseClient(baseURL, anonKey), nil, time.Minute)
}

// VerifyAccessToken returns the account id behind token.
func (v *Verifier) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	now := v.clock.Now()
	v.mu.Lock()
	if c, ok := v.cache[token]; ok {
		if now.Before(c.expires) {
			v.mu.Unlock()
			return c.id, nil
		}
		delete(v.cache, token)
	}
	v.mu.Unlock()

	user, err := v.lookup.GetUser(ctx, token)
	if err != nil {
		var status *clients.StatusError
		if errors.As(err, &status) && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return "", err
	}
	if user.ID == "" {
		return "", ErrInvalidToken
	}

	if v.ttl > 0 {
		v.mu.Lock()
		v.cache[token] = cachedUser{id: user.ID, expires: now.Add(v.ttl)}
		v.mu.Unlock()
	}
	return user.ID, nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(h http.Header) (string, error) {
	scheme, token, ok := strings.Cut(h.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
