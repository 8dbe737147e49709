package trust

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrInvalidDomain = errors.New("trust: invalid trust domain")
	ErrInvalidKey    = errors.New("trust: invalid key fingerprint")
)

// DB is the append-only store of (fingerprint, domain) trust decisions.
// Writes are serialized and persisted before they become visible; observers
// are told about changes only through an explicit Notify.
type DB struct {
	path string

	mu       sync.Mutex
	keys     map[string][]string
	watchers []func()
}

type dbFile struct {
	Keys map[string][]string `toml:"keys"`
}

// Open loads the trust database at path, starting empty if it does not
// exist yet.
func Open(path string) (*DB, error) {
	db := &DB{path: path, keys: make(map[string][]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trust db load failed (%s): %w", path, err)
	}

	var raw dbFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("trust db parse failed (%s): %w", path, err)
	}
	for fingerprint, domains := range raw.Keys {
		db.keys[normalizeFingerprint(fingerprint)] = slices.Clone(domains)
	}
	return db, nil
}

// TrustKey records fingerprint as trusted for domain and persists the
// change. Adding an already-trusted pair is a no-op.
func (db *DB) TrustKey(fingerprint, domain string) error {
	fingerprint = normalizeFingerprint(fingerprint)
	domain = strings.TrimSpace(domain)
	if fingerprint == "" {
		return ErrInvalidKey
	}
	if domain == "" {
		return ErrInvalidDomain
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if slices.Contains(db.keys[fingerprint], domain) {
		return nil
	}
	db.keys[fingerprint] = append(db.keys[fingerprint], domain)
	slices.Sort(db.keys[fingerprint])

	if err := db.save(); err != nil {
		// Roll back so a failed write never leaves phantom trust in memory.
		db.keys[fingerprint] = slices.DeleteFunc(db.keys[fingerprint], func(d string) bool {
			return d == domain
		})
		return err
	}
	return nil
}

// IsTrusted reports whether fingerprint is trusted to sign feeds for domain.
func (db *DB) IsTrusted(fingerprint, domain string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Contains(db.keys[normalizeFingerprint(fingerprint)], strings.TrimSpace(domain))
}

// Keys returns the trusted fingerprints for domain, sorted.
func (db *DB) Keys(domain string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []string
	for fingerprint, domains := range db.keys {
		if slices.Contains(domains, domain) {
			out = append(out, fingerprint)
		}
	}
	slices.Sort(out)
	return out
}

// Subscribe registers a callback invoked on every Notify.
func (db *DB) Subscribe(fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.watchers = append(db.watchers, fn)
}

// Notify broadcasts a trust-state change to all subscribers. Callers batch
// related TrustKey writes and notify once.
func (db *DB) Notify() {
	db.mu.Lock()
	watchers := slices.Clone(db.watchers)
	db.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

// save writes the full database atomically; callers hold db.mu.
func (db *DB) save() error {
	data, err := toml.Marshal(dbFile{Keys: db.keys})
	if err != nil {
		return fmt.Errorf("trust db encode failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return fmt.Errorf("trust db save failed: %w", err)
	}
	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("trust db save failed: %w", err)
	}
	if err := os.Rename(tmp, db.path); err != nil {
		return fmt.Errorf("trust db save failed: %w", err)
	}
	return nil
}

// DomainFromURL derives the trust domain (URI authority) an interface's
// signing keys are scoped to.
func DomainFromURL(uri string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: no authority in %q", ErrInvalidDomain, uri)
	}
	return host, nil
}

func normalizeFingerprint(fingerprint string) string {
	return strings.ToUpper(strings.TrimSpace(fingerprint))
}
