// Package media stores uploaded profile pictures under the public asset root.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is the URL prefix the public asset root is served under.
const PublicPrefix = "/public/"

// PictureDir is the directory below the public root holding profile pictures.
const PictureDir = "item_photos"

// ErrTooLarge is returned when a stored file would exceed the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// LocalStore writes files below root and hands out /public/ relative paths.
type LocalStore struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

// NewLocalStore prepares root/item_photos and returns a store enforcing maxBytes per file.
func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve public dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, PictureDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs, maxBytes: maxBytes, now: time.Now}, nil
}

// Root returns the absolute public directory.
func (s *LocalStore) Root() string { return s.root }

// Save streams r into a new file named after ext and returns its relative path,
// e.g. /public/item_photos/profile_1700000000000_<uuid>.png.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("profile_%d_%s%s", s.now().UnixMilli(), uuid.NewString(), strings.ToLower(ext))
	full := filepath.Join(s.root, PictureDir, name)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write file: %w", copyErr)
	case n > s.maxBytes:
		err = ErrTooLarge
	case closeErr != nil:
		err = fmt.Errorf("close file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}

	return path.Join(PublicPrefix, PictureDir, name), nil
}

// Remove deletes the file behind a relative path. Paths outside /public/ and
// files that are already gone are ignored.
func (s *LocalStore) Remove(_ context.Context, rel string) error {
	full, ok := s.resolve(rel)
	if !ok {
		return nil
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Exists reports whether rel resolves to a stored file.
func (s *LocalStore) Exists(rel string) bool {
	full, ok := s.resolve(rel)
	if !ok {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

func (s *LocalStore) resolve(rel string) (string, bool) {
	if !strings.HasPrefix(rel, PublicPrefix) {
		return "", false
	}
	cleaned := path.Clean("/" + strings.TrimPrefix(rel, PublicPrefix))
	if cleaned == "/" {
		return "", false
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), true
}
