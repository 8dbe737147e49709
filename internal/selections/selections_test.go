package selections

import (
	"errors"
	"testing"

	"github.com/danmuck/spawnctl/internal/feed"
)

func sampleSet() *Selections {
	return &Selections{
		Interface: "https://apps.example.com/editor.xml",
		Selections: map[string]*Selection{
			"https://apps.example.com/editor.xml": {
				Interface:   "https://apps.example.com/editor.xml",
				ID:          "sha256=aa11",
				Version:     "1.2.0",
				Main:        "bin/editor",
				DownloadURL: "https://apps.example.com/editor-1.2.0.tar.gz",
				Dependencies: []feed.Requirement{{
					Interface: "https://libs.example.com/parser.xml",
					Bindings: []feed.Binding{{
						Kind:   feed.BindEnvironment,
						Name:   "PARSER_PATH",
						Insert: "lib",
						Mode:   feed.EnvPrepend,
					}},
				}},
			},
			"https://libs.example.com/parser.xml": {
				Interface: "https://libs.example.com/parser.xml",
				ID:        "sha256=bb22",
				Version:   "0.9.0",
			},
		},
	}
}

func TestValidateClosure(t *testing.T) {
	s := sampleSet()
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	delete(s.Selections, "https://libs.example.com/parser.xml")
	if err := s.Validate(); !errors.Is(err, ErrInvalidSelections) {
		t.Fatalf("expected ErrInvalidSelections for dangling dependency, got %v", err)
	}
}

func TestValidateRequiresRoot(t *testing.T) {
	s := sampleSet()
	s.Interface = "https://apps.example.com/other.xml"
	if err := s.Validate(); !errors.Is(err, ErrInvalidSelections) {
		t.Fatalf("expected ErrInvalidSelections for missing root, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	s := sampleSet()
	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	replayed, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if replayed.Interface != s.Interface {
		t.Fatalf("root changed: %q", replayed.Interface)
	}
	root, err := replayed.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.ID != "sha256=aa11" || root.Main != "bin/editor" {
		t.Fatalf("root selection mangled: %+v", root)
	}
	if len(root.Dependencies) != 1 || root.Dependencies[0].Interface != "https://libs.example.com/parser.xml" {
		t.Fatalf("dependencies mangled: %+v", root.Dependencies)
	}
	if len(root.Dependencies[0].Bindings) != 1 || root.Dependencies[0].Bindings[0].Name != "PARSER_PATH" {
		t.Fatalf("dependency bindings mangled: %+v", root.Dependencies[0].Bindings)
	}
}

func TestMarshalRejectsUnknownBindingKind(t *testing.T) {
	s := sampleSet()
	root := s.Selections[s.Interface]
	root.Bindings = append(root.Bindings, feed.Binding{Kind: "portal", Name: "X"})

	if _, err := Marshal(s); !errors.Is(err, feed.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}

	root.Bindings = nil
	dep := &s.Selections[s.Interface].Dependencies[0]
	dep.Bindings = append(dep.Bindings, feed.Binding{Kind: "portal", Name: "Y"})
	if _, err := Marshal(s); !errors.Is(err, feed.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind on dependency edge, got %v", err)
	}
}

type fakeResolver map[string]string

func (f fakeResolver) Lookup(id string) (string, error) {
	if path, ok := f[id]; ok {
		return path, nil
	}
	return "", errors.New("not cached")
}

func (f fakeResolver) Contains(id string) bool {
	_, ok := f[id]
	return ok
}

func TestUncached(t *testing.T) {
	s := sampleSet()
	s.RefreshCached(fakeResolver{"sha256=aa11": "/cache/sha256=aa11"})

	missing := s.Uncached()
	if len(missing) != 1 || missing[0].ID != "sha256=bb22" {
		t.Fatalf("unexpected uncached set %+v", missing)
	}
}

func TestPackageSelectionsCountAsCached(t *testing.T) {
	s := sampleSet()
	s.Selections["https://libs.example.com/parser.xml"].ID = "package:deb:libparser"
	s.RefreshCached(fakeResolver{"sha256=aa11": "/cache/sha256=aa11"})
	if len(s.Uncached()) != 0 {
		t.Fatalf("package selections never need fetching: %+v", s.Uncached())
	}
}
