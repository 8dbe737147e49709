package trust

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trustdb.toml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if db.IsTrusted("AABB", "example.com") {
		t.Fatal("fresh db should trust nothing")
	}
}

func TestTrustKeyPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trustdb.toml")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.TrustKey("aabbccdd", "apps.example.com"); err != nil {
		t.Fatalf("trust key: %v", err)
	}
	if !db.IsTrusted("AABBCCDD", "apps.example.com") {
		t.Fatal("fingerprint should be trusted, case-insensitively")
	}
	if db.IsTrusted("AABBCCDD", "other.example.com") {
		t.Fatal("trust must be scoped to the domain")
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.IsTrusted("AABBCCDD", "apps.example.com") {
		t.Fatal("trust decision lost on reload")
	}
}

func TestTrustKeyRejectsEmptyInputs(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trustdb.toml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.TrustKey("", "example.com"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if err := db.TrustKey("AABB", "  "); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
}

func TestNotifyReachesSubscribers(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trustdb.toml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	calls := 0
	db.Subscribe(func() { calls++ })

	if err := db.TrustKey("AABB", "example.com"); err != nil {
		t.Fatalf("trust key: %v", err)
	}
	if calls != 0 {
		t.Fatal("TrustKey alone must not notify")
	}

	db.Notify()
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
}

func TestKeysForDomain(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trustdb.toml"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, fingerprint := range []string{"CCDD", "AABB"} {
		if err := db.TrustKey(fingerprint, "example.com"); err != nil {
			t.Fatalf("trust key: %v", err)
		}
	}
	keys := db.Keys("example.com")
	if len(keys) != 2 || keys[0] != "AABB" || keys[1] != "CCDD" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestDomainFromURL(t *testing.T) {
	domain, err := DomainFromURL("https://apps.example.com/editor.xml")
	if err != nil {
		t.Fatalf("domain: %v", err)
	}
	if domain != "apps.example.com" {
		t.Fatalf("unexpected domain %q", domain)
	}

	if _, err := DomainFromURL("not-a-url"); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
}
