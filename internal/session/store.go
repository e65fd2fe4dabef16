// Package session tracks issued login sessions in Redis. One record exists
// per live token, keyed by the token ID (jti); deleting the record revokes
// the token for both the REST surface and the real-time channel.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionPrefix is the Redis key prefix for all session hashes.
	SessionPrefix = "session:"
)

// Session is the server-side record for one issued token.
type Session struct {
	TokenID    string `redis:"token_id"`
	UserID     string `redis:"user_id"`
	Server     string `redis:"server"`      // which server instance issued it
	CreatedAt  int64  `redis:"created_at"`  // unix timestamp
	LastActive int64  `redis:"last_active"` // unix timestamp
}

// Store manages login sessions in Redis.
type Store struct {
	client     *redis.Client
	serverName string
	ttl        time.Duration
}

// NewStore connects to Redis and returns a session store. The TTL should
// match the token lifetime so orphaned sessions expire on their own.
func NewStore(redisAddr, serverName string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName, ttl: ttl}, nil
}

// Create records a new login session for the given token.
func (s *Store) Create(ctx context.Context, tokenID, userID string) error {
	key := SessionPrefix + tokenID
	now := time.Now().Unix()

	fields := map[string]interface{}{
		"token_id":    tokenID,
		"user_id":     userID,
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a session by token ID. Returns nil if the session does not
// exist (expired or revoked).
func (s *Store) Get(ctx context.Context, tokenID string) (*Session, error) {
	key := SessionPrefix + tokenID
	var sess Session
	if err := s.client.HGetAll(ctx, key).Scan(&sess); err != nil {
		return nil, err
	}
	if sess.TokenID == "" {
		return nil, nil
	}
	return &sess, nil
}

// Live reports whether the session for the token still exists and belongs to
// userID. Errors are reported so the caller can choose its failure policy.
func (s *Store) Live(ctx context.Context, tokenID, userID string) (bool, error) {
	sess, err := s.Get(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.UserID == userID, nil
}

// Touch refreshes the session TTL and last-active timestamp.
func (s *Store) Touch(ctx context.Context, tokenID string) error {
	key := SessionPrefix + tokenID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete revokes a session. Deleting an already-gone session is not an error.
func (s *Store) Delete(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, SessionPrefix+tokenID).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages
// (e.g. the rate limiter).
func (s *Store) Client() *redis.Client {
	return s.client
}
