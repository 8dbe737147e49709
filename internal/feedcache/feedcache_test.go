package feedcache

import (
	"errors"
	"testing"
)

const feedURI = "https://apps.example.com/editor.xml"

const feedXML = `<interface uri="https://apps.example.com/editor.xml">
  <implementation id="sha256=aa11" version="1.0.0" main="bin/editor"/>
</interface>`

func TestPutAndInterface(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cache.Has(feedURI) {
		t.Fatal("cache should start empty")
	}
	if _, err := cache.Interface(feedURI); !errors.Is(err, ErrFeedNotCached) {
		t.Fatalf("expected ErrFeedNotCached, got %v", err)
	}

	if err := cache.Put(feedURI, []byte(feedXML)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !cache.Has(feedURI) {
		t.Fatal("feed not visible after put")
	}

	iface, err := cache.Interface(feedURI)
	if err != nil {
		t.Fatalf("interface: %v", err)
	}
	if iface.URI != feedURI || len(iface.Implementations) != 1 {
		t.Fatalf("unexpected feed %+v", iface)
	}
}

func TestPutReplacesWholesale(t *testing.T) {
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := cache.Put(feedURI, []byte(feedXML)); err != nil {
		t.Fatalf("put: %v", err)
	}

	updated := `<interface uri="https://apps.example.com/editor.xml">
  <implementation id="sha256=bb22" version="2.0.0" main="bin/editor"/>
</interface>`
	if err := cache.Put(feedURI, []byte(updated)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	iface, err := cache.Interface(feedURI)
	if err != nil {
		t.Fatalf("interface: %v", err)
	}
	if len(iface.Implementations) != 1 || iface.Implementations[0].ID != "sha256=bb22" {
		t.Fatalf("old implementation set survived: %+v", iface.Implementations)
	}
}
