// Package storage gives the engine access to the project file tree through
// viant/afs, so the same code path serves local directories and in-memory
// trees (mem://) alike. Every path is relative to the configured root.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/patchtx/internal/idgen"
)

// Service reads and writes files under a project root.
type Service struct {
	root string
	fs   afs.Service
}

// Root returns the project root URL.
func (s *Service) Root() string { return s.root }

// LocalDir returns the root as a local directory, or "" when the root lives on
// a non-file scheme.
func (s *Service) LocalDir() string {
	if url.Scheme(s.root, file.Scheme) != file.Scheme {
		return ""
	}
	return url.Path(s.root)
}

// URL resolves a root-relative path, rejecting anything that escapes the root.
func (s *Service) URL(relative string) (string, error) {
	cleaned, err := Clean(relative)
	if err != nil {
		return "", err
	}
	return url.Join(s.root, cleaned), nil
}

// Exists reports whether relative is present under the root.
func (s *Service) Exists(ctx context.Context, relative string) (bool, error) {
	URL, err := s.URL(relative)
	if err != nil {
		return false, err
	}
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return false, fmt.Errorf("failed to check if %v exists: %w", relative, err)
	}
	return exists, nil
}

// Read returns the file content and whether the file existed; a missing file is not an error.
func (s *Service) Read(ctx context.Context, relative string) ([]byte, bool, error) {
	exists, err := s.Exists(ctx, relative)
	if err != nil || !exists {
		return nil, false, err
	}
	URL, _ := s.URL(relative)
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %v: %w", relative, err)
	}
	return data, true, nil
}

// Write replaces relative with data. Data is uploaded under a unique temp name
// in the same directory and then moved onto the real name, so readers see
// either the old or the complete new content.
func (s *Service) Write(ctx context.Context, relative string, data []byte) error {
	URL, err := s.URL(relative)
	if err != nil {
		return err
	}
	mode := file.DefaultFileOsMode
	if object, err := s.fs.Object(ctx, URL); err == nil && object != nil && !object.IsDir() {
		mode = object.Mode().Perm()
	}
	parent, name := url.Split(URL, file.Scheme)
	tempURL := url.Join(parent, TempName(name))
	if err := s.fs.Upload(ctx, tempURL, mode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write temp file for %v: %w", relative, err)
	}
	if err := s.fs.Move(ctx, tempURL, URL); err != nil {
		_ = s.fs.Delete(ctx, tempURL)
		return fmt.Errorf("failed to move temp file onto %v: %w", relative, err)
	}
	return nil
}

// Remove deletes relative; removing a missing file is a no-op.
func (s *Service) Remove(ctx context.Context, relative string) error {
	exists, err := s.Exists(ctx, relative)
	if err != nil || !exists {
		return err
	}
	URL, _ := s.URL(relative)
	if err := s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete %v: %w", relative, err)
	}
	return nil
}

// MissingDirs returns the ancestor directories of relative that do not exist
// yet, deepest first.
func (s *Service) MissingDirs(ctx context.Context, relative string) ([]string, error) {
	cleaned, err := Clean(relative)
	if err != nil {
		return nil, err
	}
	var result []string
	for dir := path.Dir(cleaned); dir != "." && dir != "/"; dir = path.Dir(dir) {
		exists, err := s.Exists(ctx, dir)
		if err != nil {
			return nil, err
		}
		if exists {
			break
		}
		result = append(result, dir)
	}
	return result, nil
}

// RemoveEmptyDir deletes the directory relative when it has no entries. It
// reports whether the directory is gone afterwards.
func (s *Service) RemoveEmptyDir(ctx context.Context, relative string) (bool, error) {
	exists, err := s.Exists(ctx, relative)
	if err != nil || !exists {
		return err == nil, err
	}
	URL, _ := s.URL(relative)
	objects, err := s.fs.List(ctx, URL)
	if err != nil {
		return false, fmt.Errorf("failed to list %v: %w", relative, err)
	}
	for _, object := range objects {
		if !url.Equals(object.URL(), URL) {
			return false, nil
		}
	}
	if err := s.fs.Delete(ctx, URL); err != nil {
		return false, fmt.Errorf("failed to delete directory %v: %w", relative, err)
	}
	return true, nil
}

// TempName returns a unique hidden sibling name for name.
func TempName(name string) string {
	return "." + name + ".patchtx-" + idgen.Suffix() + ".tmp"
}

// IsTemp reports whether name was produced by TempName.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".patchtx-") && strings.HasSuffix(name, ".tmp")
}

// Clean normalises a root-relative path and rejects absolute or escaping ones.
func Clean(relative string) (string, error) {
	relative = strings.ReplaceAll(strings.TrimSpace(relative), "\\", "/")
	if relative == "" {
		return "", fmt.Errorf("path was empty")
	}
	if path.IsAbs(relative) || isWindowsAbs(relative) {
		return "", fmt.Errorf("path %v is absolute", relative)
	}
	cleaned := path.Clean(relative)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %v escapes the project root", relative)
	}
	return cleaned, nil
}

func isWindowsAbs(relative string) bool {
	return len(relative) >= 2 && relative[1] == ':' &&
		((relative[0] >= 'a' && relative[0] <= 'z') || (relative[0] >= 'A' && relative[0] <= 'Z'))
}

// New creates a storage service rooted at root (a directory path or afs URL).
func New(root string, options ...Option) *Service {
	ret := &Service{root: strings.TrimRight(root, "/"), fs: afs.New()}
	if ret.root == "" {
		ret.root = "/"
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Option customises the storage service.
type Option func(s *Service)

// WithFS sets the underlying afs service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}
