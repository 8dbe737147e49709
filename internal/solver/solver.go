package solver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/spawnctl/internal/feed"
	"github.com/danmuck/spawnctl/internal/selections"
	"github.com/danmuck/spawnctl/internal/store"
)

var ErrUnsatisfiable = errors.New("solver: no usable implementation")

// FeedSource provides parsed interface feeds; the on-disk feed cache
// implements it.
type FeedSource interface {
	Interface(uri string) (*feed.Interface, error)
}

// Policy steers implementation choice. The zero value is not useful; use
// DefaultPolicy and override.
type Policy struct {
	// StabilityFloor excludes implementations rated below it. Buggy and
	// insecure implementations are only reachable by lowering the floor
	// explicitly.
	StabilityFloor feed.Stability
	// PreferredStability ranks matching implementations first, ahead of
	// higher-rated ones. Following a "testing" preference means testing
	// builds beat stable ones, not that stable builds become unusable.
	PreferredStability feed.Stability
	Arch               feed.Arch
	PreferCached       bool
}

func DefaultPolicy() Policy {
	return Policy{
		StabilityFloor:     feed.Testing,
		PreferredStability: feed.Stable,
		Arch:               feed.HostArch(),
		PreferCached:       true,
	}
}

// Solver walks an interface graph and picks one implementation per
// reachable interface. Deterministic for a fixed feed source and policy.
type Solver struct {
	feeds  FeedSource
	store  store.Resolver
	policy Policy
	log    zerolog.Logger
}

func New(feeds FeedSource, resolver store.Resolver, policy Policy, log zerolog.Logger) *Solver {
	return &Solver{feeds: feeds, store: resolver, policy: policy, log: log}
}

// Solve resolves root and its requirement closure into a selection set.
func (s *Solver) Solve(root string) (*selections.Selections, error) {
	sels := &selections.Selections{
		Interface:  strings.TrimSpace(root),
		Selections: make(map[string]*selections.Selection),
	}
	if err := s.solve(sels.Interface, sels); err != nil {
		return nil, err
	}
	if err := sels.Validate(); err != nil {
		return nil, err
	}
	return sels, nil
}

func (s *Solver) solve(uri string, sels *selections.Selections) error {
	if _, done := sels.Selections[uri]; done {
		return nil
	}

	iface, err := s.feeds.Interface(uri)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnsatisfiable, uri, err)
	}

	impl, ok := s.choose(iface)
	if !ok {
		return fmt.Errorf("%w: %s (policy: floor=%s arch=%s)",
			ErrUnsatisfiable, uri, s.policy.StabilityFloor, s.policy.Arch)
	}
	s.log.Debug().
		Str("interface", uri).
		Str("id", impl.ID).
		Str("version", impl.Version).
		Msg("selected implementation")

	// Enter the selection before recursing so requirement cycles terminate.
	sels.Selections[uri] = &selections.Selection{
		Interface:    uri,
		ID:           impl.ID,
		Version:      impl.Version,
		Main:         impl.Main,
		DownloadURL:  impl.DownloadURL,
		Bindings:     slices.Clone(impl.Bindings),
		Dependencies: slices.Clone(impl.Requires),
		Cached:       s.isCached(impl),
	}

	for _, req := range impl.Requires {
		if err := s.solve(req.Interface, sels); err != nil {
			return err
		}
	}
	return nil
}

// choose picks the best usable implementation, or false when none is.
func (s *Solver) choose(iface *feed.Interface) (feed.Implementation, bool) {
	var candidates []feed.Implementation
	for _, impl := range iface.Implementations {
		if !impl.Arch.Matches(s.policy.Arch) {
			continue
		}
		if impl.Stability < s.policy.StabilityFloor {
			continue
		}
		candidates = append(candidates, impl)
	}
	if len(candidates) == 0 {
		return feed.Implementation{}, false
	}
	slices.SortFunc(candidates, s.rank)
	return candidates[0], true
}

// rank orders candidates best-first. Every comparison below is total, so
// resolution is reproducible for a fixed feed set.
func (s *Solver) rank(a, b feed.Implementation) int {
	if c := rankBool(a.Stability == s.policy.PreferredStability, b.Stability == s.policy.PreferredStability); c != 0 {
		return c
	}
	if s.policy.PreferCached {
		if c := rankBool(s.isCached(a), s.isCached(b)); c != 0 {
			return c
		}
	}
	if a.Stability != b.Stability {
		if a.Stability > b.Stability {
			return -1
		}
		return 1
	}
	if c := feed.CompareVersions(b.Version, a.Version); c != 0 {
		return c
	}
	if c := b.Arch.Specificity() - a.Arch.Specificity(); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func (s *Solver) isCached(impl feed.Implementation) bool {
	if impl.IsPackage() || strings.HasPrefix(impl.ID, "/") {
		return true
	}
	return s.store.Contains(impl.ID)
}

// rankBool sorts true before false.
func rankBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}
