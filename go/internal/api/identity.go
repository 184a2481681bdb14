package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"connectrpc.com/connect"

	"github.com/mcdev12/zippy/go/internal/auth"
)

// Verifier turns a bearer token into an account id.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

var errAuthDisabled = errors.New("sign in is not configured")

// requireUser resolves the caller's account or fails with Unauthenticated.
func requireUser(ctx context.Context, v Verifier, h http.Header) (string, error) {
	if v == nil {
		return "", connect.NewError(connect.CodeUnauthenticated, errAuthDisabled)
	}
	token, err := auth.BearerToken(h)
	if err != nil {
		return "", connect.NewError(connect.CodeUnauthenticated, err)
	}
	userID, err := v.VerifyAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
			return "", connect.NewError(connect.CodeUnauthenticated, err)
		}
		return "", connect.NewError(connect.CodeUnavailable, err)
	}
	return userID, nil
}

// optionalUser resolves the caller when a bearer token was sent. Anonymous
// callers get an empty id, a bad token still fails.
func optionalUser(ctx context.Context, v Verifier, h http.Header) (string, error) {
	if v == nil || h.Get("Authorization") == "" {
		return "", nil
	}
	return requireUser(ctx, v, h)
}

// clientAddress is the address a guest is keyed by. X-Forwarded-For is only
// honoured when the peer is a trusted proxy, and then the rightmost hop that
// is not itself a trusted proxy wins, since everything left of it is client
// supplied.
func clientAddress(h http.Header, peer connect.Peer, trusted []netip.Prefix) string {
	host := peer.Addr
	if hp, _, err := net.SplitHostPort(peer.Addr); err == nil {
		host = hp
	}
	if !isTrusted(host, trusted) {
		return host
	}

	var hops []string
	for _, v := range h.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !isTrusted(hops[i], trusted) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
