// Package storage keeps uploaded audio until its job is deleted.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned for unknown blob references
var ErrNotFound = errors.New("blob not found")

// FileStore saves blobs as files under a root directory
type FileStore struct {
	fs   afero.Fs
	root string
}

// NewFileStore creates a store rooted at dir on fs
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{fs: fs, root: dir}, nil
}

// NewOSFileStore creates a store on the local filesystem
func NewOSFileStore(dir string) (*FileStore, error) {
	return NewFileStore(afero.NewOsFs(), dir)
}

// Save writes r under a fresh reference that keeps the file extension
func (s *FileStore) Save(filename string, r io.Reader) (string, error) {
	ref := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))
	f, err := s.fs.OpenFile(filepath.Join(s.root, ref), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(filepath.Join(s.root, ref))
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	return ref, nil
}

// Read returns the full contents of a blob
func (s *FileStore) Read(ref string) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return b, err
}

// Delete removes a blob; missing blobs are not an error
func (s *FileStore) Delete(ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// path rejects references that would escape the root
func (s *FileStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("%w: invalid reference %q", ErrNotFound, ref)
	}
	return filepath.Join(s.root, ref), nil
}
