package feed

import (
	"fmt"
	"strings"
)

// Stability rates an implementation; higher is safer to select.
type Stability int

const (
	Insecure Stability = iota
	Buggy
	Developer
	Testing
	Stable
)

var stabilityNames = map[Stability]string{
	Insecure:  "insecure",
	Buggy:     "buggy",
	Developer: "developer",
	Testing:   "testing",
	Stable:    "stable",
}

func ParseStability(raw string) (Stability, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "stable":
		return Stable, nil
	case "testing":
		return Testing, nil
	case "developer":
		return Developer, nil
	case "buggy":
		return Buggy, nil
	case "insecure":
		return Insecure, nil
	default:
		return Stable, fmt.Errorf("%w: stability %q", ErrInvalidFeed, raw)
	}
}

func (s Stability) String() string {
	if name, ok := stabilityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stability(%d)", int(s))
}
