package objstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// FSStore keeps documents as files under a root directory.
type FSStore struct {
	root string
}

// NewFS creates a store rooted at dir, creating it when needed.
func NewFS(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fs: create root %s", dir)
	}
	return &FSStore{root: dir}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FSStore) FetchFile(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "fs: %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fs: read %s", key)
	}
	return data, nil
}

// WriteFile writes through a temporary file so readers never see a partial document.
func (s *FSStore) WriteFile(_ context.Context, key string, content []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return eris.Wrapf(err, "fs: create dir for %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "fs: create temp for %s", key)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(content); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "fs: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "fs: close %s", key)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return eris.Wrapf(err, "fs: rename %s", key)
	}
	return nil
}

func (s *FSStore) FetchDirectoryFiles(_ context.Context, prefix string) (Listing, error) {
	dirPart, namePrefix := "", prefix
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dirPart, namePrefix = prefix[:i+1], prefix[i+1:]
	}

	entries, err := os.ReadDir(s.path(dirPart))
	if errors.Is(err, fs.ErrNotExist) {
		return Listing{Files: []string{}, Subdirectories: []string{}}, nil
	}
	if err != nil {
		return Listing{}, eris.Wrapf(err, "fs: list %s", prefix)
	}

	listing := Listing{Files: []string{}, Subdirectories: []string{}}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".tmp-") || !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if e.IsDir() {
			listing.Subdirectories = append(listing.Subdirectories, dirPart+name+"/")
			continue
		}
		listing.Files = append(listing.Files, dirPart+name)
	}
	sort.Strings(listing.Files)
	sort.Strings(listing.Subdirectories)
	return listing, nil
}

func (s *FSStore) DeleteFile(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "fs: delete %s", key)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }
