// Package httpapi exposes the REST surface: account signup/login, contact
// listing, conversation history, and the message write path. Sending a
// message persists it first and only then hands it to the delivery router;
// a failed push never surfaces here because persistence is the durability
// authority.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/chatline/dm-app/internal/auth"
	"github.com/chatline/dm-app/internal/metrics"
	"github.com/chatline/dm-app/internal/ratelimit"
	"github.com/chatline/dm-app/internal/store"
)

// UserStore is the account persistence the API depends on.
type UserStore interface {
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	ListContacts(ctx context.Context, excludeID string) ([]store.User, error)
	UpdateProfilePicture(ctx context.Context, userID, pictureURL string) (*store.User, error)
}

// MessageStore is the conversation persistence the API depends on.
type MessageStore interface {
	CreateMessage(ctx context.Context, senderID, receiverID, content, image string) (*store.Message, error)
	History(ctx context.Context, userA, userB string) ([]store.Message, error)
}

// Deliverer pushes a persisted message toward its recipient. Called exactly
// once per successfully persisted message, after persistence.
type Deliverer interface {
	Deliver(msg *store.Message)
}

// Uploader stores an uploaded image and returns its public URL.
type Uploader interface {
	UploadDataURI(dataURI string) (string, error)
}

// SessionStore tracks live login sessions.
type SessionStore interface {
	Create(ctx context.Context, tokenID, userID string) error
	Delete(ctx context.Context, tokenID string) error
	Live(ctx context.Context, tokenID, userID string) (bool, error)
}

// RateLimiter throttles actions per identifier. A nil limiter disables
// throttling.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// API holds the handlers' collaborators.
type API struct {
	users         UserStore
	messages      MessageStore
	router        Deliverer
	uploads       Uploader
	sessions      SessionStore
	tokens        *auth.TokenIssuer
	limiter       RateLimiter
	secureCookies bool
}

// Config collects the API's collaborators.
type Config struct {
	Users         UserStore
	Messages      MessageStore
	Router        Deliverer
	Uploads       Uploader
	Sessions      SessionStore
	Tokens        *auth.TokenIssuer
	Limiter       RateLimiter // optional
	SecureCookies bool
}

// New creates the API.
func New(cfg Config) *API {
	return &API{
		users:         cfg.Users,
		messages:      cfg.Messages,
		router:        cfg.Router,
		uploads:       cfg.Uploads,
		sessions:      cfg.Sessions,
		tokens:        cfg.Tokens,
		limiter:       cfg.Limiter,
		secureCookies: cfg.SecureCookies,
	}
}

// Register mounts the REST routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", a.instrument("/api/auth/signup", a.handleSignup))
	mux.HandleFunc("POST /api/auth/login", a.instrument("/api/auth/login", a.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", a.instrument("/api/auth/logout", a.handleLogout))
	mux.HandleFunc("GET /api/auth/me", a.instrument("/api/auth/me", a.requireAuth(a.handleMe)))
	mux.HandleFunc("PUT /api/auth/profile", a.instrument("/api/auth/profile", a.requireAuth(a.handleUpdateProfile)))

	mux.HandleFunc("GET /api/messages/users", a.instrument("/api/messages/users", a.requireAuth(a.handleContacts)))
	mux.HandleFunc("GET /api/messages/{id}", a.instrument("/api/messages/history", a.requireAuth(a.handleHistory)))
	mux.HandleFunc("POST /api/messages/{id}", a.instrument("/api/messages/send", a.requireAuth(a.handleSend)))
}

// instrument wraps a handler with the HTTP latency histogram, labeled by
// route pattern rather than raw path to keep cardinality bounded.
func (a *API) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HTTPDuration.WithLabelValues(r.Method, route).
				Observe(time.Since(start).Seconds())
		}()
		next(w, r)
	}
}
