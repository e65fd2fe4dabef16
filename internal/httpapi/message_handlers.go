package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/chatline/dm-app/internal/ratelimit"
	"github.com/chatline/dm-app/internal/store"
)

type sendRequest struct {
	Content string `json:"content"`
	Image   string `json:"image"`
}

func (a *API) handleContacts(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListContacts(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		log.Printf("httpapi: list contacts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	self := identityFromContext(r.Context())
	other := r.PathValue("id")
	if other == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	msgs, err := a.messages.History(r.Context(), self, other)
	if err != nil {
		log.Printf("httpapi: fetch history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	self := identityFromContext(r.Context())
	receiver := r.PathValue("id")
	if receiver == "" {
		writeError(w, http.StatusBadRequest, "missing receiver id")
		return
	}

	if !a.allow(r, self, ratelimit.RuleSend) {
		writeError(w, http.StatusTooManyRequests, "sending too fast")
		return
	}

	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	imageURL := ""
	if req.Image != "" {
		var err error
		imageURL, err = a.uploads.UploadDataURI(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid image")
			return
		}
	}

	// Persist first. Delivery is attempted only after the message is
	// durable; a persistence failure surfaces here and nothing is pushed.
	msg, err := a.messages.CreateMessage(r.Context(), self, receiver, req.Content, imageURL)
	if errors.Is(err, store.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message needs content or image")
		return
	}
	if errors.Is(err, store.ErrMessageTooLong) {
		writeError(w, http.StatusBadRequest, "message too long")
		return
	}
	if err != nil {
		log.Printf("httpapi: persist message: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	// Best-effort push; its outcome never changes the response.
	a.router.Deliver(msg)

	writeJSON(w, http.StatusCreated, msg)
}
