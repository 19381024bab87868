// Package ingest turns uploads and inbound emails into documents ready for intake.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file")
	ErrNoAttachment    = errors.New("no pdf attachment")
)

// Document is one PDF with the metadata every ingestion path provides. Hash is the
// hex sha256 of Bytes, so the same file yields the same identity by email or upload.
type Document struct {
	Bytes    []byte
	Hash     string
	Filename string
	Sender   string
	Source   constants.Source
}

// NewDocument hashes pdf and wraps it.
func NewDocument(pdf []byte, filename, sender string, source constants.Source) Document {
	sum := sha256.Sum256(pdf)
	return Document{
		Bytes:    pdf,
		Hash:     hex.EncodeToString(sum[:]),
		Filename: filepath.Base(filename),
		Sender:   strings.TrimSpace(sender),
		Source:   source,
	}
}

// FromPath reads an uploaded file. Only allowed extensions are accepted.
func FromPath(path, sender string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return Document{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFile, ext)
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return Document{}, fmt.Errorf("read: %w", err)
	}
	if len(b) == 0 {
		return Document{}, fmt.Errorf("%w: %s is empty", ErrUnsupportedFile, abs)
	}
	return NewDocument(b, abs, sender, constants.SourceUpload), nil
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// IssuerFromPath returns the first directory under root on the way to path, which
// drop folders use as the issuer key ("<root>/acme/wo.pdf" -> "acme"). Files placed
// directly in root yield "".
func IssuerFromPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	dir, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		return ""
	}
	return dir
}
