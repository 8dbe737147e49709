package solver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/spawnctl/internal/feed"
)

type fakeFeeds map[string]*feed.Interface

func (f fakeFeeds) Interface(uri string) (*feed.Interface, error) {
	iface, ok := f[uri]
	if !ok {
		return nil, fmt.Errorf("unknown interface %s", uri)
	}
	return iface, nil
}

type fakeStore map[string]string

func (f fakeStore) Lookup(id string) (string, error) {
	if path, ok := f[id]; ok {
		return path, nil
	}
	return "", errors.New("not cached")
}

func (f fakeStore) Contains(id string) bool {
	_, ok := f[id]
	return ok
}

func testPolicy() Policy {
	return Policy{
		StabilityFloor:     feed.Testing,
		PreferredStability: feed.Stable,
		Arch:               feed.Arch{OS: "linux", CPU: "amd64"},
	}
}

func newSolver(feeds fakeFeeds, cached fakeStore, policy Policy) *Solver {
	return New(feeds, cached, policy, zerolog.Nop())
}

func impl(id, version string, stability feed.Stability) feed.Implementation {
	return feed.Implementation{ID: id, Version: version, Stability: stability}
}

const rootURI = "https://apps.example.com/app.xml"

func TestSolvePicksHighestStableVersion(t *testing.T) {
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{
		impl("sha256=old", "1.0.0", feed.Stable),
		impl("sha256=new", "1.10.0", feed.Stable),
		impl("sha256=dev", "2.0.0", feed.Developer),
	}}}

	sels, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	root, _ := sels.Root()
	if root.ID != "sha256=new" {
		t.Fatalf("expected sha256=new, got %s", root.ID)
	}
}

func TestSolvePrefersPreferredStabilityOverVersion(t *testing.T) {
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{
		impl("sha256=stable", "1.0.0", feed.Stable),
		impl("sha256=testing", "2.0.0", feed.Testing),
	}}}

	policy := testPolicy()
	policy.PreferredStability = feed.Testing
	sels, err := newSolver(feeds, fakeStore{}, policy).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	root, _ := sels.Root()
	if root.ID != "sha256=testing" {
		t.Fatalf("expected testing build preferred, got %s", root.ID)
	}
}

func TestSolveStabilityFloorExcludesDeveloper(t *testing.T) {
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{
		impl("sha256=dev", "2.0.0", feed.Developer),
	}}}

	if _, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI); !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("expected ErrUnsatisfiable, got %v", err)
	}
}

func TestSolveArchFilter(t *testing.T) {
	wrongArch := impl("sha256=mac", "2.0.0", feed.Stable)
	wrongArch.Arch = feed.Arch{OS: "darwin", CPU: "arm64"}
	rightArch := impl("sha256=linux", "1.0.0", feed.Stable)
	rightArch.Arch = feed.Arch{OS: "linux", CPU: "amd64"}

	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{wrongArch, rightArch}}}
	sels, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	root, _ := sels.Root()
	if root.ID != "sha256=linux" {
		t.Fatalf("expected linux build, got %s", root.ID)
	}
}

func TestSolvePreferCachedBeatsNewerVersion(t *testing.T) {
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{
		impl("sha256=cached", "1.0.0", feed.Stable),
		impl("sha256=newer", "2.0.0", feed.Stable),
	}}}

	policy := testPolicy()
	policy.PreferCached = true
	sels, err := newSolver(feeds, fakeStore{"sha256=cached": "/cache/sha256=cached"}, policy).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	root, _ := sels.Root()
	if root.ID != "sha256=cached" {
		t.Fatalf("expected cached build, got %s", root.ID)
	}
	if !root.Cached {
		t.Fatal("selection should be flagged cached")
	}
}

func TestSolveResolvesRequirementClosure(t *testing.T) {
	const libURI = "https://libs.example.com/lib.xml"

	rootImpl := impl("sha256=app", "1.0.0", feed.Stable)
	rootImpl.Requires = []feed.Requirement{{Interface: libURI}}

	feeds := fakeFeeds{
		rootURI: {URI: rootURI, Implementations: []feed.Implementation{rootImpl}},
		libURI:  {URI: libURI, Implementations: []feed.Implementation{impl("sha256=lib", "0.5.0", feed.Stable)}},
	}

	sels, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sels.Selections) != 2 {
		t.Fatalf("expected 2 selections, got %v", sels.Interfaces())
	}
	if sels.Selections[libURI].ID != "sha256=lib" {
		t.Fatalf("dependency not selected: %+v", sels.Selections[libURI])
	}
	if len(sels.Uncached()) != 2 {
		t.Fatalf("both selections should need fetching: %+v", sels.Uncached())
	}
}

func TestSolveRequirementCycleTerminates(t *testing.T) {
	const otherURI = "https://libs.example.com/other.xml"

	a := impl("sha256=a", "1.0.0", feed.Stable)
	a.Requires = []feed.Requirement{{Interface: otherURI}}
	b := impl("sha256=b", "1.0.0", feed.Stable)
	b.Requires = []feed.Requirement{{Interface: rootURI}}

	feeds := fakeFeeds{
		rootURI:  {URI: rootURI, Implementations: []feed.Implementation{a}},
		otherURI: {URI: otherURI, Implementations: []feed.Implementation{b}},
	}

	sels, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sels.Selections) != 2 {
		t.Fatalf("expected 2 selections, got %v", sels.Interfaces())
	}
}

func TestSolveUnknownDependencyFails(t *testing.T) {
	rootImpl := impl("sha256=app", "1.0.0", feed.Stable)
	rootImpl.Requires = []feed.Requirement{{Interface: "https://libs.example.com/missing.xml"}}
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{rootImpl}}}

	if _, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI); !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("expected ErrUnsatisfiable, got %v", err)
	}
}

func TestSolveDeterministicTieBreak(t *testing.T) {
	feeds := fakeFeeds{rootURI: {URI: rootURI, Implementations: []feed.Implementation{
		impl("sha256=bbbb", "1.0.0", feed.Stable),
		impl("sha256=aaaa", "1.0.0", feed.Stable),
	}}}

	for i := 0; i < 5; i++ {
		sels, err := newSolver(feeds, fakeStore{}, testPolicy()).Solve(rootURI)
		if err != nil {
			t.Fatalf("solve: %v", err)
		}
		root, _ := sels.Root()
		if root.ID != "sha256=aaaa" {
			t.Fatalf("tie-break not deterministic: got %s", root.ID)
		}
	}
}
