package media

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// tinyPNG is a valid 1x1 PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestUploadDataURI(t *testing.T) {
	s := newTestStore(t)

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG)
	url, err := s.UploadDataURI(uri)
	if err != nil {
		t.Fatalf("UploadDataURI: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") {
		t.Errorf("url = %q, want /uploads/ prefix", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want .png extension from sniffed type", url)
	}

	stored, err := os.ReadFile(filepath.Join(s.Dir(), filepath.Base(url)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if len(stored) != len(tinyPNG) {
		t.Errorf("stored %d bytes, want %d", len(stored), len(tinyPNG))
	}
}

func TestUploadBareBase64(t *testing.T) {
	s := newTestStore(t)

	url, err := s.UploadDataURI(base64.StdEncoding.EncodeToString(tinyPNG))
	if err != nil {
		t.Fatalf("UploadDataURI: %v", err)
	}
	if url == "" {
		t.Error("empty url for valid upload")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	s := newTestStore(t)

	// The declared type lies; the sniffed content is plain text.
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello world, definitely not a png"))
	if _, err := s.UploadDataURI(uri); !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("UploadDataURI error = %v, want ErrNotAnImage", err)
	}
}

func TestUploadRejectsBadBase64(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UploadDataURI("data:image/png;base64,@@not-base64@@"); err == nil {
		t.Fatal("UploadDataURI accepted invalid base64")
	}
}

func TestUploadRejectsMalformedDataURI(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UploadDataURI("data:image/png;base64"); err == nil {
		t.Fatal("UploadDataURI accepted a data URI with no payload separator")
	}
}
