package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidArtifact = errors.New("invalid artifact")

// Store keeps confirmed work-order PDFs on the local filesystem.
type Store interface {
	// Put writes pdf under issuer/identifier and returns the stored path. Writing the
	// same bytes twice yields the same path.
	Put(ctx context.Context, issuer, identifier string, pdf []byte) (string, error)
	// Remove deletes a path previously returned by Put. Missing files are not an error.
	Remove(ctx context.Context, path string) error
}

// FSStore lays artifacts out as <dir>/<issuer>/<identifier>/<sha256>.pdf.
type FSStore struct {
	dir    string
	logger *slog.Logger
}

func NewFSStore(dir string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: artifact dir is required", ErrInvalidArtifact)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FSStore{dir: abs, logger: logger}, nil
}

// Dir returns the absolute root of the store.
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) Put(ctx context.Context, issuer, identifier string, pdf []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(pdf) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrInvalidArtifact)
	}
	if !safeSegment(issuer) || !safeSegment(identifier) {
		return "", fmt.Errorf("%w: bad path segment %q/%q", ErrInvalidArtifact, issuer, identifier)
	}

	sum := sha256.Sum256(pdf)
	dir := filepath.Join(s.dir, issuer, identifier)
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+".pdf")
	if _, err := os.Stat(path); err == nil {
		s.logger.Debug("artifact exists", "path", path)
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(pdf); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("commit artifact: %w", err)
	}

	s.logger.Info("artifact stored", "issuer", issuer, "identifier", identifier, "path", path, "bytes", len(pdf))
	return path, nil
}

func (s *FSStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s is outside the store", ErrInvalidArtifact, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("failed to remove artifact", "path", path, "error", err)
		return err
	}
	s.logger.Info("artifact removed", "path", path)
	return nil
}

func safeSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	return !strings.ContainsAny(seg, `/\`) && !strings.HasPrefix(seg, ".")
}
