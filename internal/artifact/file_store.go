// Package artifact persists combined audio artifacts and serves them back
// for download.
//
// The default backend is the local filesystem under a public-facing audio
// directory; a NATS JetStream object-store backend can be selected by
// configuration for deployments that already run JetStream.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PublicAudioPrefix is the URL path prefix under which artifacts are
// served.
const PublicAudioPrefix = "/audio/"

// File permissions for persisted artifacts.
const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

// ErrArtifactNotFound is returned by Load for unknown filenames.
var ErrArtifactNotFound = errors.New("audio artifact not found")

// FileStore saves audio artifacts to a local public directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a filesystem-backed artifact store rooted at dir.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = filepath.Join("public", "audio")
	}

	return &FileStore{dir: dir}
}

// Save writes data to {dir}/{filename} and returns the public path under
// which the artifact is downloadable.
func (s *FileStore) Save(_ context.Context, filename string, data []byte) (string, error) {
	err := os.MkdirAll(s.dir, dirPermissions)
	if err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	path := filepath.Join(s.dir, filename)

	err = os.WriteFile(path, data, filePermissions)
	if err != nil {
		return "", fmt.Errorf("failed to write audio file '%s': %w", filename, err)
	}

	return PublicAudioPrefix + filename, nil
}

// Load reads a previously saved artifact back.
//
// Filenames are base names only; path separators are rejected so a
// download request cannot escape the audio directory.
func (s *FileStore) Load(_ context.Context, filename string) ([]byte, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return nil, fmt.Errorf("%w: %q", ErrArtifactNotFound, filename)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, filename)
		}

		return nil, fmt.Errorf("failed to read audio file '%s': %w", filename, err)
	}

	return data, nil
}
