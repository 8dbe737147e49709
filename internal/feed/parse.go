package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type xmlFeed struct {
	XMLName         xml.Name            `xml:"interface"`
	URI             string              `xml:"uri,attr"`
	Name            string              `xml:"name"`
	Summary         string              `xml:"summary"`
	Implementations []xmlImplementation `xml:"implementation"`
}

type xmlImplementation struct {
	ID        string        `xml:"id,attr"`
	Version   string        `xml:"version,attr"`
	Arch      string        `xml:"arch,attr"`
	Stability string        `xml:"stability,attr"`
	Main      string        `xml:"main,attr"`
	Archive   *xmlArchive   `xml:"archive"`
	Requires  []xmlRequires `xml:"requires"`
	Bindings  []xmlBinding  `xml:",any"`
}

type xmlArchive struct {
	Href string `xml:"href,attr"`
	Size int64  `xml:"size,attr"`
}

type xmlRequires struct {
	Interface string       `xml:"interface,attr"`
	Bindings  []xmlBinding `xml:",any"`
}

type xmlBinding struct {
	XMLName   xml.Name
	Name      string `xml:"name,attr"`
	Insert    string `xml:"insert,attr"`
	Mode      string `xml:"mode,attr"`
	Separator string `xml:"separator,attr"`
}

// Parse decodes one interface feed document and validates it. Unknown
// binding elements are rejected rather than skipped so a feed authored for
// a newer launcher fails loudly instead of running half-bound.
func Parse(data []byte) (*Interface, error) {
	var raw xmlFeed
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	iface := &Interface{
		URI:     strings.TrimSpace(raw.URI),
		Name:    strings.TrimSpace(raw.Name),
		Summary: strings.TrimSpace(raw.Summary),
	}

	for _, rawImpl := range raw.Implementations {
		impl, err := convertImplementation(rawImpl)
		if err != nil {
			return nil, err
		}
		iface.Implementations = append(iface.Implementations, impl)
	}

	if err := iface.Validate(); err != nil {
		return nil, err
	}
	return iface, nil
}

func convertImplementation(raw xmlImplementation) (Implementation, error) {
	arch, err := ParseArch(raw.Arch)
	if err != nil {
		return Implementation{}, fmt.Errorf("implementation %q: %w", raw.ID, err)
	}
	stability, err := ParseStability(raw.Stability)
	if err != nil {
		return Implementation{}, fmt.Errorf("implementation %q: %w", raw.ID, err)
	}

	impl := Implementation{
		ID:        strings.TrimSpace(raw.ID),
		Version:   strings.TrimSpace(raw.Version),
		Arch:      arch,
		Stability: stability,
		Main:      strings.TrimSpace(raw.Main),
	}
	if raw.Archive != nil {
		impl.DownloadURL = strings.TrimSpace(raw.Archive.Href)
		impl.Size = raw.Archive.Size
	}

	impl.Bindings, err = convertBindings(raw.Bindings)
	if err != nil {
		return Implementation{}, fmt.Errorf("implementation %q: %w", raw.ID, err)
	}

	for _, rawReq := range raw.Requires {
		bindings, err := convertBindings(rawReq.Bindings)
		if err != nil {
			return Implementation{}, fmt.Errorf("implementation %q requires %q: %w", raw.ID, rawReq.Interface, err)
		}
		impl.Requires = append(impl.Requires, Requirement{
			Interface: strings.TrimSpace(rawReq.Interface),
			Bindings:  bindings,
		})
	}
	return impl, nil
}

func convertBindings(raw []xmlBinding) ([]Binding, error) {
	var out []Binding
	for _, rb := range raw {
		switch rb.XMLName.Local {
		case "environment":
			mode := EnvMode(strings.TrimSpace(rb.Mode))
			if mode == "" {
				mode = EnvPrepend
			}
			b := Binding{
				Kind:      BindEnvironment,
				Name:      strings.TrimSpace(rb.Name),
				Insert:    strings.TrimSpace(rb.Insert),
				Mode:      mode,
				Separator: rb.Separator,
			}
			if err := b.Validate(); err != nil {
				return nil, err
			}
			out = append(out, b)
		default:
			return nil, fmt.Errorf("%w: element <%s>", ErrUnknownKind, rb.XMLName.Local)
		}
	}
	return out, nil
}
