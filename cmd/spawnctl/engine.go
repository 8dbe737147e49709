package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/spawnctl/internal/feedcache"
	"github.com/danmuck/spawnctl/internal/fetch"
	"github.com/danmuck/spawnctl/internal/launch"
	"github.com/danmuck/spawnctl/internal/observability"
	"github.com/danmuck/spawnctl/internal/selections"
	"github.com/danmuck/spawnctl/internal/solver"
	"github.com/danmuck/spawnctl/internal/store"
	"github.com/danmuck/spawnctl/internal/trust"
)

// engine is the fully wired tool: every collaborator built once, injected
// everywhere, torn down with the process.
type engine struct {
	cfg      appConfig
	log      zerolog.Logger
	store    *store.Dir
	feeds    *feedcache.Dir
	trustDB  *trust.DB
	checker  *trust.KeyringChecker
	coord    *fetch.Coordinator
	launcher *launch.Launcher
}

func newEngine(cfg appConfig, log zerolog.Logger) (*engine, error) {
	storeDir, err := store.OpenDir(cfg.StoreDir)
	if err != nil {
		return nil, err
	}
	feeds, err := feedcache.Open(cfg.FeedCacheDir)
	if err != nil {
		return nil, err
	}
	trustDB, err := trust.Open(cfg.TrustDBPath)
	if err != nil {
		return nil, err
	}
	checker, err := trust.OpenKeyring(cfg.KeyringDir)
	if err != nil {
		return nil, err
	}

	var confirmer fetch.Confirmer = refuseConfirmer{}
	if interactive() {
		confirmer = &promptConfirmer{in: os.Stdin, out: os.Stderr}
	}

	coord := fetch.NewCoordinator(
		fetch.NewLoop(),
		fetch.NewHTTPFetcher(),
		trustDB, checker, confirmer, log,
	)

	return &engine{
		cfg:      cfg,
		log:      log,
		store:    storeDir,
		feeds:    feeds,
		trustDB:  trustDB,
		checker:  checker,
		coord:    coord,
		launcher: launch.NewLauncher(storeDir, log),
	}, nil
}

func interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// ensureFeeds makes the feed cache cover root's whole reachable interface
// graph, fetching and verifying anything missing (or everything, with
// refresh). The closure here is a superset of what the solver will pick:
// every interface any candidate implementation requires.
func (e *engine) ensureFeeds(root string, refresh bool) error {
	seen := make(map[string]bool)
	queue := []string{root}

	for len(queue) > 0 {
		uri := queue[0]
		queue = queue[1:]
		if seen[uri] {
			continue
		}
		seen[uri] = true

		if refresh || !e.feeds.Has(uri) {
			_, payload, err := e.coord.RetrieveFeed(uri, refresh)
			if err != nil {
				return err
			}
			if err := e.feeds.Put(uri, payload); err != nil {
				return err
			}
		}

		iface, err := e.feeds.Interface(uri)
		if err != nil {
			return err
		}
		for _, impl := range iface.Implementations {
			for _, req := range impl.Requires {
				if !seen[req.Interface] {
					queue = append(queue, req.Interface)
				}
			}
		}
	}
	return nil
}

// solve runs the solver against the feed cache and times it.
func (e *engine) solve(root string, policy solver.Policy) (*selections.Selections, error) {
	started := time.Now()
	sels, err := solver.New(e.feeds, e.store, policy, e.log).Solve(root)
	if err != nil {
		return nil, err
	}
	observability.RecordSolve(time.Since(started))
	sels.RefreshCached(e.store)
	return sels, nil
}

// loadSelections replays a previously saved selection set from disk,
// refreshing its cached flags against the local store. No solving happens.
func (e *engine) loadSelections(path string) (*selections.Selections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	sels, err := selections.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	sels.RefreshCached(e.store)
	return sels, nil
}

// addArchive imports a local archive into the store under its own digest
// id and returns that id.
func (e *engine) addArchive(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}
	id := store.IDFor(data)
	if err := e.store.Add(id, data); err != nil {
		return "", err
	}
	return id, nil
}

// downloadSelections fetches every uncached implementation archive and adds
// it to the store, digest-checked.
func (e *engine) downloadSelections(sels *selections.Selections) error {
	for _, sel := range sels.Uncached() {
		if sel.DownloadURL == "" {
			return fmt.Errorf("%w: %s has no download source", store.ErrNotCached, sel.ID)
		}
		e.log.Info().Str("interface", sel.Interface).Str("url", sel.DownloadURL).Msg("downloading implementation")
		archive, err := e.coord.Fetch(sel.DownloadURL, false)
		if err != nil {
			return err
		}
		if err := e.store.Add(sel.ID, archive); err != nil {
			return err
		}
	}
	sels.RefreshCached(e.store)
	return nil
}
