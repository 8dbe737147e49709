package launch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/spawnctl/internal/feed"
	"github.com/danmuck/spawnctl/internal/selections"
	"github.com/danmuck/spawnctl/internal/store"
)

var ErrUnknownBinding = errors.New("launch: unknown binding kind")

// Env abstracts the process environment so binding application can run
// against a plain map in tests and in dry runs.
type Env interface {
	Get(name string) (string, bool)
	Set(name, value string)
}

// OSEnv is the real process environment.
type OSEnv struct{}

func (OSEnv) Get(name string) (string, bool) { return os.LookupEnv(name) }
func (OSEnv) Set(name, value string)         { os.Setenv(name, value) }

// MapEnv is an in-memory environment.
type MapEnv map[string]string

func (m MapEnv) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapEnv) Set(name, value string) { m[name] = value }

// ApplyBindings applies every selection's own bindings and, for each
// dependency edge, the edge's bindings against the dependency's installed
// path. Native (package:) dependencies are exempt from path bindings; they
// are assumed present on the host. Application is idempotent.
func ApplyBindings(sels *selections.Selections, resolver store.Resolver, env Env) error {
	for _, uri := range sels.Interfaces() {
		sel := sels.Selections[uri]

		if !sel.IsPackage() {
			path, err := implementationPath(sel, resolver)
			if err != nil {
				return err
			}
			if err := applyAll(sel.Bindings, path, env); err != nil {
				return fmt.Errorf("selection %s: %w", uri, err)
			}
		}

		for _, dep := range sel.Dependencies {
			depSel := sels.Selections[dep.Interface]
			if depSel.IsPackage() {
				continue
			}
			path, err := implementationPath(depSel, resolver)
			if err != nil {
				return err
			}
			if err := applyAll(dep.Bindings, path, env); err != nil {
				return fmt.Errorf("dependency %s of %s: %w", dep.Interface, uri, err)
			}
		}
	}
	return nil
}

func applyAll(bindings []feed.Binding, path string, env Env) error {
	for _, b := range bindings {
		switch b.Kind {
		case feed.BindEnvironment:
			var old *string
			if v, ok := env.Get(b.Name); ok {
				old = &v
			}
			env.Set(b.Name, b.EnvValue(path, old))
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBinding, b.Kind)
		}
	}
	return nil
}

// implementationPath resolves a selection's installed directory. Absolute
// ids are local directories already; digest ids go through the store.
func implementationPath(sel *selections.Selection, resolver store.Resolver) (string, error) {
	if strings.HasPrefix(sel.ID, "/") {
		return sel.ID, nil
	}
	return resolver.Lookup(sel.ID)
}
