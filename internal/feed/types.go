package feed

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrInvalidFeed    = errors.New("feed: invalid feed document")
	ErrInvalidBinding = errors.New("feed: invalid binding")
	ErrUnknownKind    = errors.New("feed: unknown binding kind")
)

// PackageIDPrefix marks implementations provided by the host distribution.
// Such implementations have no cache entry and no path-based bindings.
const PackageIDPrefix = "package:"

// Interface is one named contract, identified by URI, with its known
// candidate implementations. Immutable once parsed; a refresh replaces the
// implementation set wholesale.
type Interface struct {
	URI             string
	Name            string
	Summary         string
	Implementations []Implementation
}

// Implementation is one concrete installable version of an Interface.
type Implementation struct {
	ID          string
	Version     string
	Arch        Arch
	Stability   Stability
	Main        string
	DownloadURL string
	Size        int64
	Requires    []Requirement
	Bindings    []Binding
}

// IsPackage reports whether the implementation is distribution-provided.
func (i Implementation) IsPackage() bool {
	return strings.HasPrefix(i.ID, PackageIDPrefix)
}

// Requirement is a dependency edge to another Interface, carrying the
// bindings the dependent wants applied against the dependency's location.
type Requirement struct {
	Interface string
	Bindings  []Binding
}

// BindingKind discriminates the closed set of binding variants.
type BindingKind string

const (
	// BindEnvironment exposes a dependency path through an env variable.
	BindEnvironment BindingKind = "environment"
)

// EnvMode is the combination rule for an environment binding.
type EnvMode string

const (
	EnvPrepend EnvMode = "prepend"
	EnvAppend  EnvMode = "append"
	EnvReplace EnvMode = "replace"
)

// Binding is a declarative rule for exposing an implementation's location
// to a dependent. Kind selects the variant; dispatch must be exhaustive.
type Binding struct {
	Kind BindingKind

	// BindEnvironment fields.
	Name      string
	Insert    string
	Mode      EnvMode
	Separator string
}

func (b Binding) Validate() error {
	switch b.Kind {
	case BindEnvironment:
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("%w: environment binding missing name", ErrInvalidBinding)
		}
		switch b.Mode {
		case EnvPrepend, EnvAppend, EnvReplace:
		default:
			return fmt.Errorf("%w: environment binding mode %q", ErrInvalidBinding, b.Mode)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, b.Kind)
	}
}

// EnvValue combines path into the variable's current value per the binding
// rule. old is nil when the variable is unset. Insertion is idempotent: a
// list element already present is not inserted again.
func (b Binding) EnvValue(path string, old *string) string {
	element := path
	if b.Insert != "" {
		element = path + "/" + b.Insert
	}
	sep := b.Separator
	if sep == "" {
		sep = string(os.PathListSeparator)
	}
	if b.Mode == EnvReplace || old == nil || *old == "" {
		return element
	}
	for _, part := range strings.Split(*old, sep) {
		if part == element {
			return *old
		}
	}
	if b.Mode == EnvAppend {
		return *old + sep + element
	}
	return element + sep + *old
}

func (f *Interface) Validate() error {
	if strings.TrimSpace(f.URI) == "" {
		return fmt.Errorf("%w: missing uri", ErrInvalidFeed)
	}
	for i, impl := range f.Implementations {
		if strings.TrimSpace(impl.ID) == "" {
			return fmt.Errorf("%w: implementation[%d] missing id", ErrInvalidFeed, i)
		}
		if strings.TrimSpace(impl.Version) == "" {
			return fmt.Errorf("%w: implementation %q missing version", ErrInvalidFeed, impl.ID)
		}
		for _, b := range impl.Bindings {
			if err := b.Validate(); err != nil {
				return fmt.Errorf("implementation %q: %w", impl.ID, err)
			}
		}
		for _, req := range impl.Requires {
			if strings.TrimSpace(req.Interface) == "" {
				return fmt.Errorf("%w: implementation %q requires missing interface", ErrInvalidFeed, impl.ID)
			}
			for _, b := range req.Bindings {
				if err := b.Validate(); err != nil {
					return fmt.Errorf("implementation %q requires %q: %w", impl.ID, req.Interface, err)
				}
			}
		}
	}
	return nil
}

// Implementation lookup by id; second result reports presence.
func (f *Interface) Implementation(id string) (Implementation, bool) {
	for _, impl := range f.Implementations {
		if impl.ID == id {
			return impl, true
		}
	}
	return Implementation{}, false
}
