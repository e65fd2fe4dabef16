package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer("test-secret-key", ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

func TestTokenRoundTrip(t *testing.T) {
	ti := newTestIssuer(t, time.Hour)

	token, tokenID, err := ti.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tokenID == "" {
		t.Fatal("Issue returned empty token ID")
	}

	claims, err := ti.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
	if claims.ID != tokenID {
		t.Errorf("claims.ID = %q, want %q", claims.ID, tokenID)
	}
}

func TestTokenTampered(t *testing.T) {
	ti := newTestIssuer(t, time.Hour)

	token, _, err := ti.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := ti.Validate(tampered); err == nil {
		t.Fatal("Validate accepted a tampered token")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	ti := newTestIssuer(t, time.Hour)
	other, err := NewTokenIssuer("a-different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, _, err := ti.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Validate(token); err == nil {
		t.Fatal("Validate accepted a token signed with a different secret")
	}
}

func TestTokenExpired(t *testing.T) {
	ti := newTestIssuer(t, -time.Minute)

	token, _, err := ti.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := ti.Validate(token); err == nil {
		t.Fatal("Validate accepted an expired token")
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Fatal("NewTokenIssuer accepted an empty secret")
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash equals the plaintext password")
	}

	if !CheckPassword(hash, "s3cret-pass") {
		t.Error("CheckPassword rejected the correct password")
	}
	if CheckPassword(hash, "wrong-pass") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestPasswordTooShort(t *testing.T) {
	if _, err := HashPassword("abc"); err == nil {
		t.Fatal("HashPassword accepted a too-short password")
	}
}
