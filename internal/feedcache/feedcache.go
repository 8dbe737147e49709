// Package feedcache owns the on-disk cache of verified interface feeds.
package feedcache

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/danmuck/spawnctl/internal/feed"
)

var ErrFeedNotCached = errors.New("feedcache: interface not cached")

// Dir caches one verified feed document per interface URI. Only payloads
// that already passed the signature gate belong here.
type Dir struct {
	root string
}

func Open(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("feedcache open failed (%s): %w", root, err)
	}
	return &Dir{root: abs}, nil
}

// Interface loads and parses the cached feed for uri. Implements the
// solver's feed source.
func (d *Dir) Interface(uri string) (*feed.Interface, error) {
	data, err := os.ReadFile(d.path(uri))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotCached, uri)
	}
	if err != nil {
		return nil, err
	}
	return feed.Parse(data)
}

// Has reports whether a feed for uri is cached.
func (d *Dir) Has(uri string) bool {
	_, err := os.Stat(d.path(uri))
	return err == nil
}

// Put replaces the cached feed for uri wholesale.
func (d *Dir) Put(uri string, payload []byte) error {
	tmp := d.path(uri) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("feedcache write failed (%s): %w", uri, err)
	}
	if err := os.Rename(tmp, d.path(uri)); err != nil {
		return fmt.Errorf("feedcache write failed (%s): %w", uri, err)
	}
	return nil
}

func (d *Dir) path(uri string) string {
	return filepath.Join(d.root, url.PathEscape(uri))
}
