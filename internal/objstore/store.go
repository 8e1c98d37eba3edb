// Package objstore defines the key/value document store the pipeline reads
// raw payloads from and publishes derived documents to.
package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by FetchFile when no document exists at a key.
var ErrNotFound = eris.New("objstore: not found")

// Listing is the result of a directory listing: the keys directly under the
// prefix and the immediate sub-prefixes (each ending in "/").
type Listing struct {
	Files          []string `json:"files"`
	Subdirectories []string `json:"subdirectories"`
}

// Store is a flat key/value document store with "/"-separated keys.
type Store interface {
	// FetchFile returns the content at key, or ErrNotFound.
	FetchFile(ctx context.Context, key string) ([]byte, error)
	// WriteFile creates or replaces the content at key.
	WriteFile(ctx context.Context, key string, content []byte) error
	// FetchDirectoryFiles lists keys under prefix, one level deep.
	FetchDirectoryFiles(ctx context.Context, prefix string) (Listing, error)
	// DeleteFile removes key. Deleting a missing key is not an error.
	DeleteFile(ctx context.Context, key string) error
	// Close releases the store's resources.
	Close() error
}

// IsNotFound reports whether err signals a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ReadJSON decodes the document at key into v.
func ReadJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.FetchFile(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "objstore: decode %s", key)
	}
	return nil
}

// ReadOptionalJSON decodes the document at key into v. A missing document
// leaves v untouched and reports false.
func ReadOptionalJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	err := ReadJSON(ctx, s, key, v)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Encode renders v the way every document is persisted: indented JSON with
// a trailing newline. Map keys are sorted, so equal values give equal bytes.
func Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "objstore: encode")
	}
	return append(data, '\n'), nil
}

// WriteJSON encodes v and writes it at key.
func WriteJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return eris.Wrapf(err, "objstore: encode %s", key)
	}
	return s.WriteFile(ctx, key, data)
}

// listKeys turns a flat set of keys into a one-level listing under prefix.
func listKeys(prefix string, keys []string) Listing {
	files := []string{}
	dirs := map[string]struct{}{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[prefix+rest[:i+1]] = struct{}{}
			continue
		}
		files = append(files, key)
	}
	sort.Strings(files)

	subdirs := make([]string, 0, len(dirs))
	for d := range dirs {
		subdirs = append(subdirs, d)
	}
	sort.Strings(subdirs)
	return Listing{Files: files, Subdirectories: subdirs}
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return eris.Errorf("objstore: invalid key %q", key)
	}
	return nil
}
