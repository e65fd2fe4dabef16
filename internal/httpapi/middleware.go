package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/chatline/dm-app/internal/auth"
)

// TokenCookie is the cookie carrying the auth token.
const TokenCookie = "token"

type ctxKey int

const identityKey ctxKey = iota

// identityFromContext returns the authenticated user ID set by requireAuth.
func identityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey).(string)
	return id
}

// bearerToken extracts the credential from the request: the token cookie
// first, then an Authorization bearer header.
func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// authenticate validates the request credential against the token issuer and
// the session store. Returns the claims for a live, verified token.
func (a *API) authenticate(r *http.Request) (*auth.Claims, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		return nil, http.ErrNoCookie
	}

	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	live, err := a.sessions.Live(ctx, claims.ID, claims.UserID)
	if err != nil {
		// Session check unavailable; fail closed for the request surface.
		return nil, err
	}
	if !live {
		return nil, http.ErrNoCookie
	}
	return claims, nil
}

// requireAuth gates a handler behind a valid token and live session, and
// stores the verified identity in the request context.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

// ResolveIdentity is the identity resolver for the real-time channel. The
// WebSocket connect must present the same credential the REST surface uses
// (cookie, bearer header, or a token query parameter for clients that
// cannot set headers on the upgrade request). A userId query parameter that
// contradicts the verified identity rejects the connection rather than
// trusting the client's claim. An empty return means the connection runs
// unregistered.
func (a *API) ResolveIdentity(r *http.Request) string {
	tokenString := bearerToken(r)
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return ""
	}

	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		log.Printf("httpapi: ws connect with invalid token: %v", err)
		return ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	live, err := a.sessions.Live(ctx, claims.ID, claims.UserID)
	if err != nil || !live {
		return ""
	}

	if claimed := r.URL.Query().Get("userId"); claimed != "" && claimed != claims.UserID {
		log.Printf("httpapi: ws connect identity mismatch: claimed=%s token=%s", claimed, claims.UserID)
		return ""
	}
	return claims.UserID
}
