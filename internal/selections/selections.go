package selections

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/spawnctl/internal/feed"
	"github.com/danmuck/spawnctl/internal/store"
)

var (
	ErrInvalidSelections = errors.New("selections: invalid selection set")
	ErrNotInSet          = errors.New("selections: interface not in set")
)

// Selection is the chosen implementation for one interface, carrying
// everything needed to bind and launch it without the original feed.
type Selection struct {
	Interface    string
	ID           string
	Version      string
	Main         string
	DownloadURL  string
	Bindings     []feed.Binding
	Dependencies []feed.Requirement

	// Cached is recomputed against the local store; it is not serialized.
	Cached bool
}

// IsPackage reports whether the selection is distribution-provided.
func (s *Selection) IsPackage() bool {
	return strings.HasPrefix(s.ID, feed.PackageIDPrefix)
}

// Selections maps each reachable interface URI to exactly one Selection.
// Immutable once built; may be persisted and replayed without re-solving.
type Selections struct {
	Interface  string
	Selections map[string]*Selection
}

// Root returns the selection for the root interface.
func (s *Selections) Root() (*Selection, error) {
	sel, ok := s.Selections[s.Interface]
	if !ok {
		return nil, fmt.Errorf("%w: root %s", ErrNotInSet, s.Interface)
	}
	return sel, nil
}

// Validate checks the closure invariant: one selection per interface, and
// every dependency edge resolving to another entry in the set.
func (s *Selections) Validate() error {
	if strings.TrimSpace(s.Interface) == "" {
		return fmt.Errorf("%w: missing root interface", ErrInvalidSelections)
	}
	if _, ok := s.Selections[s.Interface]; !ok {
		return fmt.Errorf("%w: root %s has no selection", ErrInvalidSelections, s.Interface)
	}
	for uri, sel := range s.Selections {
		if sel == nil || strings.TrimSpace(sel.ID) == "" {
			return fmt.Errorf("%w: %s has no implementation", ErrInvalidSelections, uri)
		}
		if sel.Interface != uri {
			return fmt.Errorf("%w: %s keyed under %s", ErrInvalidSelections, sel.Interface, uri)
		}
		for _, dep := range sel.Dependencies {
			if _, ok := s.Selections[dep.Interface]; !ok {
				return fmt.Errorf("%w: %s requires unselected %s", ErrInvalidSelections, uri, dep.Interface)
			}
		}
	}
	return nil
}

// RefreshCached recomputes each selection's Cached flag against the store.
func (s *Selections) RefreshCached(resolver store.Resolver) {
	for _, sel := range s.Selections {
		sel.Cached = sel.IsPackage() || strings.HasPrefix(sel.ID, "/") || resolver.Contains(sel.ID)
	}
}

// Uncached lists selections whose implementation still has to be fetched,
// ordered by interface URI for determinism.
func (s *Selections) Uncached() []*Selection {
	var out []*Selection
	for _, sel := range s.Selections {
		if !sel.Cached {
			out = append(out, sel)
		}
	}
	slices.SortFunc(out, func(a, b *Selection) int {
		return strings.Compare(a.Interface, b.Interface)
	})
	return out
}

// Interfaces returns the selected interface URIs, sorted.
func (s *Selections) Interfaces() []string {
	out := make([]string, 0, len(s.Selections))
	for uri := range s.Selections {
		out = append(out, uri)
	}
	slices.Sort(out)
	return out
}
