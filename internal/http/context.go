package http

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionKey   contextKey = "session"
	userKey      contextKey = "user"
	peerKey      contextKey = "peer"
)

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func getSession(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// getUser returns nil for guests.
func getUser(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

// getPeer is the connection address as accepted, before any proxy header rewrite.
func getPeer(ctx context.Context) string {
	if peer, ok := ctx.Value(peerKey).(string); ok {
		return peer
	}
	return ""
}
