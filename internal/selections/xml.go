package selections

import (
	"encoding/xml"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/spawnctl/internal/feed"
)

type xmlSelections struct {
	XMLName    xml.Name       `xml:"selections"`
	Interface  string         `xml:"interface,attr"`
	Selections []xmlSelection `xml:"selection"`
}

type xmlSelection struct {
	Interface   string        `xml:"interface,attr"`
	ID          string        `xml:"id,attr"`
	Version     string        `xml:"version,attr"`
	Main        string        `xml:"main,attr,omitempty"`
	DownloadURL string        `xml:"download-url,attr,omitempty"`
	Bindings    []xmlBinding  `xml:"environment"`
	Requires    []xmlRequires `xml:"requires"`
}

type xmlRequires struct {
	Interface string       `xml:"interface,attr"`
	Bindings  []xmlBinding `xml:"environment"`
}

type xmlBinding struct {
	Name      string `xml:"name,attr"`
	Insert    string `xml:"insert,attr,omitempty"`
	Mode      string `xml:"mode,attr"`
	Separator string `xml:"separator,attr,omitempty"`
}

// Marshal serializes a validated selection set for later replay.
func Marshal(s *Selections) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	doc := xmlSelections{Interface: s.Interface}
	for _, uri := range s.Interfaces() {
		sel := s.Selections[uri]
		bindings, err := bindingsOut(sel.Bindings)
		if err != nil {
			return nil, fmt.Errorf("selection %q: %w", uri, err)
		}
		entry := xmlSelection{
			Interface:   sel.Interface,
			ID:          sel.ID,
			Version:     sel.Version,
			Main:        sel.Main,
			DownloadURL: sel.DownloadURL,
			Bindings:    bindings,
		}
		deps := slices.Clone(sel.Dependencies)
		slices.SortFunc(deps, func(a, b feed.Requirement) int {
			return strings.Compare(a.Interface, b.Interface)
		})
		for _, dep := range deps {
			depBindings, err := bindingsOut(dep.Bindings)
			if err != nil {
				return nil, fmt.Errorf("selection %q requires %q: %w", uri, dep.Interface, err)
			}
			entry.Requires = append(entry.Requires, xmlRequires{
				Interface: dep.Interface,
				Bindings:  depBindings,
			})
		}
		doc.Selections = append(doc.Selections, entry)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelections, err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

// Unmarshal replays a previously saved selection set. Cached flags are not
// part of the document; callers refresh them against the local store.
func Unmarshal(data []byte) (*Selections, error) {
	var doc xmlSelections
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelections, err)
	}

	out := &Selections{
		Interface:  strings.TrimSpace(doc.Interface),
		Selections: make(map[string]*Selection, len(doc.Selections)),
	}
	for _, entry := range doc.Selections {
		sel := &Selection{
			Interface:   strings.TrimSpace(entry.Interface),
			ID:          strings.TrimSpace(entry.ID),
			Version:     strings.TrimSpace(entry.Version),
			Main:        strings.TrimSpace(entry.Main),
			DownloadURL: strings.TrimSpace(entry.DownloadURL),
		}
		var err error
		if sel.Bindings, err = bindingsIn(entry.Bindings); err != nil {
			return nil, fmt.Errorf("selection %q: %w", sel.Interface, err)
		}
		for _, dep := range entry.Requires {
			bindings, err := bindingsIn(dep.Bindings)
			if err != nil {
				return nil, fmt.Errorf("selection %q requires %q: %w", sel.Interface, dep.Interface, err)
			}
			sel.Dependencies = append(sel.Dependencies, feed.Requirement{
				Interface: strings.TrimSpace(dep.Interface),
				Bindings:  bindings,
			})
		}
		out.Selections[sel.Interface] = sel
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func bindingsOut(in []feed.Binding) ([]xmlBinding, error) {
	var out []xmlBinding
	for _, b := range in {
		// Only environment bindings exist today; a kind this encoder does
		// not know must fail the save rather than vanish from the document.
		switch b.Kind {
		case feed.BindEnvironment:
			out = append(out, xmlBinding{
				Name:      b.Name,
				Insert:    b.Insert,
				Mode:      string(b.Mode),
				Separator: b.Separator,
			})
		default:
			return nil, fmt.Errorf("%w: %q", feed.ErrUnknownKind, b.Kind)
		}
	}
	return out, nil
}

func bindingsIn(in []xmlBinding) ([]feed.Binding, error) {
	var out []feed.Binding
	for _, rb := range in {
		mode := feed.EnvMode(strings.TrimSpace(rb.Mode))
		if mode == "" {
			mode = feed.EnvPrepend
		}
		b := feed.Binding{
			Kind:      feed.BindEnvironment,
			Name:      strings.TrimSpace(rb.Name),
			Insert:    strings.TrimSpace(rb.Insert),
			Mode:      mode,
			Separator: rb.Separator,
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
