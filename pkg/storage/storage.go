// Package storage keeps uploaded booking documents (identity scans, payment proofs).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Document kinds
const (
	KindNIDDocument  = "nid"
	KindPaymentProof = "payment-proof"
)

// ErrTooLarge is returned when an upload exceeds the configured limit
var ErrTooLarge = errors.New("document exceeds upload limit")

// DocumentStore persists uploads and resolves their references
type DocumentStore interface {
	Store(ctx context.Context, kind, filename string, r io.Reader) (string, error)
	Exists(ctx context.Context, ref string) (bool, error)
}

// DiskStore writes documents under a root directory. References are
// "<kind>/<uuid><ext>" and never contain the client supplied name.
type DiskStore struct {
	root     string
	maxBytes int64
}

// NewDiskStore creates the root directory if needed
func NewDiskStore(root string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create document directory: %w", err)
	}
	return &DiskStore{root: root, maxBytes: maxBytes}, nil
}

// Store copies r to disk and returns its reference
func (s *DiskStore) Store(ctx context.Context, kind, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if kind != KindNIDDocument && kind != KindPaymentProof {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}

	ref := path.Join(kind, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	full := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(full)
		return "", fmt.Errorf("failed to write document: %w", err)
	case n > s.maxBytes:
		os.Remove(full)
		return "", ErrTooLarge
	case closeErr != nil:
		os.Remove(full)
		return "", fmt.Errorf("failed to write document: %w", closeErr)
	}

	return ref, nil
}

// Exists reports whether a reference points at a stored document
func (s *DiskStore) Exists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean := path.Clean(ref)
	if ref == "" || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return false, nil
	}

	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat document: %w", err)
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}
