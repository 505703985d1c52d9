/*
middleware.go - Session cookie handling

PURPOSE:
  Extracts the session token from the HTTP-only cookie, verifies it via
  the session gateway, and stores the resulting principal in the request
  context. Handlers never read the cookie themselves.

DEGRADATION:
  A missing or invalid cookie does NOT abort the request here; the
  principal is simply absent from the context. Handlers that require
  authentication call principal() and respond 401 themselves, which lets
  GET /auth/me answer {"authenticated": false} instead of erroring.
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/warp/leave-engine/auth"
	"github.com/warp/leave-engine/leave"
)

const sessionCookieName = "leave_session"

type contextKey string

const userContextKey contextKey = "user"

// SessionMiddleware resolves the session cookie into a principal.
func SessionMiddleware(gateway *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err == nil && cookie.Value != "" {
				if u, err := gateway.Verify(r.Context(), cookie.Value); err == nil && u != nil {
					r = r.WithContext(context.WithValue(r.Context(), userContextKey, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal returns the authenticated user from the request context,
// or nil when the request carries no valid session.
func principal(r *http.Request) *leave.User {
	u, _ := r.Context().Value(userContextKey).(*leave.User)
	return u
}

// setSessionCookie installs the HTTP-only session cookie.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.TokenTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
