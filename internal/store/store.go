package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrNotCached      = errors.New("store: implementation not cached")
	ErrInvalidID      = errors.New("store: invalid implementation id")
	ErrDigestMismatch = errors.New("store: archive digest mismatch")
)

// Resolver maps an implementation id to its installed directory. The
// engine depends on this, not on Dir, so tests can substitute a fake.
type Resolver interface {
	Lookup(id string) (string, error)
	Contains(id string) bool
}

// Dir is a directory of unpacked implementations, one subdirectory per id.
// Entries are immutable once added.
type Dir struct {
	root string
}

func OpenDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("store open failed (%s): %w", root, err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the store directory.
func (d *Dir) Root() string { return d.root }

// Lookup returns the absolute directory for id.
func (d *Dir) Lookup(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	path := filepath.Join(d.root, id)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotCached, id)
	}
	return path, nil
}

func (d *Dir) Contains(id string) bool {
	_, err := d.Lookup(id)
	return err == nil
}

// Add verifies that archive hashes to the digest named by id, unpacks it
// into a staging directory, and renames the result into place. A partial
// unpack never becomes visible.
func (d *Dir) Add(id string, archive []byte) error {
	digest, err := digestFromID(id)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(archive)
	if hex.EncodeToString(sum[:]) != digest {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, id)
	}
	if d.Contains(id) {
		return nil
	}

	staging, err := os.MkdirTemp(d.root, ".staging-")
	if err != nil {
		return fmt.Errorf("store add failed: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := unpack(archive, staging); err != nil {
		return fmt.Errorf("store add failed (%s): %w", id, err)
	}
	if err := os.Rename(staging, filepath.Join(d.root, id)); err != nil {
		return fmt.Errorf("store add failed (%s): %w", id, err)
	}
	return nil
}

// List returns the cached implementation ids, sorted.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		out = append(out, entry.Name())
	}
	slices.Sort(out)
	return out, nil
}

func validateID(id string) error {
	if _, err := digestFromID(id); err != nil {
		return err
	}
	return nil
}

func digestFromID(id string) (string, error) {
	digest, ok := strings.CutPrefix(id, "sha256=")
	if !ok || digest == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return strings.ToLower(digest), nil
}

// IDFor computes the store id for an archive.
func IDFor(archive []byte) string {
	sum := sha256.Sum256(archive)
	return "sha256=" + hex.EncodeToString(sum[:])
}
