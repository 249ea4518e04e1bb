// Package fs stores segments as plain files below a root directory, which is
// the layout other tools expect next to an exchange file.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"atfxcore/internal/blob/core"
)

// Store implements core.Store using the local filesystem. Segment names map
// to relative file paths under the root. It is not safe for concurrent
// writers appending to the same segment.
type Store struct {
	root string
}

// New returns a filesystem-backed segment store rooted at path, creating it
// if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Root returns the directory segments live in.
func (s *Store) Root() string { return s.root }

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) pathFor(name string) (string, error) {
	if !core.ValidName(name) {
		return "", fmt.Errorf("invalid segment name %q", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid segment name %q", name)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Store) Stat(_ context.Context, name string) (core.Info, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return core.Info{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return core.Info{}, err
	}
	if fi.IsDir() {
		return core.Info{}, fmt.Errorf("segment %s is a directory", name)
	}
	return core.Info{Name: name, Size: fi.Size(), LastModified: fi.ModTime().UTC()}, nil
}

func (s *Store) ReadAt(_ context.Context, name string, p []byte, off int64) (int, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return f.ReadAt(p, off)
}

func (s *Store) Append(_ context.Context, name string, data []byte) (off int64, err error) {
	path, err := s.pathFor(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	off, err = f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Write(data); err != nil {
		return 0, err
	}
	return off, nil
}

func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		infos = append(infos, core.Info{Name: name, Size: fi.Size(), LastModified: fi.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
