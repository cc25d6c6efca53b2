package store

import (
	"context"

	"github.com/JonMunkholm/partlog/internal/model"
)

type contextKey string

const (
	ctxKeySession contextKey = "store_session"
	ctxKeyUser    contextKey = "store_user"
)

// Session is the credential a request presents to the store.
type Session struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user,omitempty"`
}

// ContextWithSession attaches the request's session to ctx.
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext returns the session attached to ctx.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(Session)
	return s, ok
}

// ContextWithUser attaches the authenticated user to ctx.
func ContextWithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext returns the authenticated user attached to ctx, or nil.
func UserFromContext(ctx context.Context) *model.User {
	if u, ok := ctx.Value(ctxKeyUser).(*model.User); ok {
		return u
	}
	return nil
}
