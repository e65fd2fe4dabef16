package httpapi

import (
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/chatline/dm-app/internal/auth"
	"github.com/chatline/dm-app/internal/ratelimit"
	"github.com/chatline/dm-app/internal/store"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type signupRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	ProfilePic string `json:"profilePic"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.FullName == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if !emailRe.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	user, err := a.users.CreateUser(r.Context(), req.Email, req.FullName, hash)
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, "user already exists")
		return
	}
	if err != nil {
		log.Printf("httpapi: create user: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if !a.startSession(w, r, user.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}

	if !a.allow(r, req.Email, ratelimit.RuleLogin) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	user, err := a.users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		writeError(w, http.StatusBadRequest, "invalid email or password")
		return
	}
	if err != nil {
		log.Printf("httpapi: login lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if !a.startSession(w, r, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Best effort: revoke the session if the request carries a valid token.
	if tokenString := bearerToken(r); tokenString != "" {
		if claims, err := a.tokens.Validate(tokenString); err == nil {
			if err := a.sessions.Delete(r.Context(), claims.ID); err != nil {
				log.Printf("httpapi: delete session: %v", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUserByID(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfilePic == "" {
		writeError(w, http.StatusBadRequest, "profile picture is required")
		return
	}

	url, err := a.uploads.UploadDataURI(req.ProfilePic)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image")
		return
	}

	user, err := a.users.UpdateProfilePicture(r.Context(), identityFromContext(r.Context()), url)
	if err != nil {
		log.Printf("httpapi: update profile: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// startSession issues a token for userID, records the session, and sets the
// auth cookie. Returns false after writing an error response on failure.
func (a *API) startSession(w http.ResponseWriter, r *http.Request, userID string) bool {
	token, tokenID, err := a.tokens.Issue(userID)
	if err != nil {
		log.Printf("httpapi: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return false
	}
	if err := a.sessions.Create(r.Context(), tokenID, userID); err != nil {
		log.Printf("httpapi: create session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return false
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	return true
}

// allow consults the rate limiter, failing open when none is configured.
func (a *API) allow(r *http.Request, identifier string, rule ratelimit.Rule) bool {
	if a.limiter == nil {
		return true
	}
	ok, _ := a.limiter.Allow(r.Context(), identifier, rule)
	return ok
}
