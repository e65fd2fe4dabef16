// Package media stores uploaded images and returns URLs for them, standing
// in for an external blob store. Clients send images as base64 data URIs;
// the payload is sniffed (never trusted from the declared content type)
// before being written under the public uploads path.
package media

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageBytes caps decoded upload size at 8 MiB.
const MaxImageBytes = 8 << 20

// allowedTypes is the set of image MIME types accepted for upload.
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// ErrNotAnImage is returned when the decoded payload is not an accepted
// image type.
var ErrNotAnImage = fmt.Errorf("media: payload is not a supported image")

// ErrTooLarge is returned when the decoded payload exceeds MaxImageBytes.
var ErrTooLarge = fmt.Errorf("media: image exceeds %d bytes", MaxImageBytes)

// Store writes uploaded images to a local directory served under urlPrefix.
type Store struct {
	dir       string
	urlPrefix string
}

// NewStore creates the upload directory if needed and returns a Store.
// urlPrefix is the public path the directory is served under, e.g.
// "/uploads".
func NewStore(dir, urlPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &Store{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir returns the on-disk upload directory (for the static file handler).
func (s *Store) Dir() string {
	return s.dir
}

// UploadDataURI decodes a base64 data URI (or bare base64 string), verifies
// that it is an accepted image, stores it, and returns its public URL.
func (s *Store) UploadDataURI(dataURI string) (string, error) {
	payload := dataURI
	if strings.HasPrefix(dataURI, "data:") {
		// The declared media type between "data:" and ";base64," is
		// ignored; only the sniffed type counts.
		idx := strings.Index(dataURI, ",")
		if idx < 0 {
			return "", fmt.Errorf("media: malformed data URI")
		}
		payload = dataURI[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("media: decode base64: %w", err)
	}
	if len(raw) > MaxImageBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(raw)
	if !allowedTypes[mtype.String()] {
		return "", ErrNotAnImage
	}

	name := uuid.New().String() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return "", fmt.Errorf("media: write image: %w", err)
	}

	return s.urlPrefix + "/" + name, nil
}
