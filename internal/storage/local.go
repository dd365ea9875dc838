// Package storage keeps uploaded files on the local filesystem and serves
// them under a public base URL.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	BucketQRCodes      = "qrcodes"
	BucketPickupProof  = "pickup-proof-images"
	BucketReceiptProof = "receipt-proof-images"
)

type Uploader interface {
	// Upload stores data under bucket/name and returns its public URL. An
	// empty name gets a random one; a given name overwrites.
	Upload(ctx context.Context, data []byte, bucket, name string) (string, error)
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type LocalStore struct {
	baseDir   string
	publicURL string
	logger    *slog.Logger
}

func NewLocalStore(baseDir, publicURL string, logger *slog.Logger) *LocalStore {
	return &LocalStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With("component", "storage"),
	}
}

func (s *LocalStore) Upload(ctx context.Context, data []byte, bucket, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !safeName.MatchString(bucket) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	if name == "" {
		name = uuid.NewString()
	}
	if !safeName.MatchString(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	dir := filepath.Join(s.baseDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bucket dir: %w", err)
	}

	// Write then rename so readers never see a partial file.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	url := s.publicURL + "/" + path.Join(bucket, name)
	s.logger.Debug("file stored", "bucket", bucket, "name", name, "bytes", len(data))
	return url, nil
}

// Dir is the root served under the public URL.
func (s *LocalStore) Dir() string {
	return s.baseDir
}
