package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Message is one persisted direct message. Content and Image are optional
// individually but at least one must be present. Messages are immutable once
// created; the conversation between two users is the set of messages whose
// (sender, receiver) pair matches either orientation, ordered by CreatedAt
// with the id as tie-breaker.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MaxContentLength caps message text at 2000 runes.
const MaxContentLength = 2000

// ErrEmptyMessage is returned when a message has neither content nor image.
var ErrEmptyMessage = fmt.Errorf("store: message needs content or image")

// ErrMessageTooLong is returned when message text exceeds MaxContentLength.
var ErrMessageTooLong = fmt.Errorf("store: message exceeds %d characters", MaxContentLength)

// CreateMessage appends a message to the conversation record and returns the
// persisted row. The id and timestamp are assigned here so the returned
// Message is exactly what a later history fetch will see.
func (s *Store) CreateMessage(ctx context.Context, senderID, receiverID, content, image string) (*Message, error) {
	if content == "" && image == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrMessageTooLong
	}

	m := &Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}

	const query = `
		INSERT INTO messages (id, sender_id, receiver_id, content, image, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Image, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert message: %w", err)
	}
	return m, nil
}

// History returns all messages exchanged between userA and userB, oldest
// first. The pair is symmetric: History(a, b) and History(b, a) return the
// same sequence.
func (s *Store) History(ctx context.Context, userA, userB string) ([]Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, COALESCE(content, ''), COALESCE(image, ''), created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Image, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate history: %w", err)
	}
	return msgs, nil
}

// GetMessage returns a single message by id, or ErrNotFound.
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	const query = `
		SELECT id, sender_id, receiver_id, COALESCE(content, ''), COALESCE(image, ''), created_at
		FROM messages WHERE id = $1`

	var m Message
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Image, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return &m, nil
}
