package feed

import (
	"fmt"
	"runtime"
	"strings"
)

// Arch constrains an implementation to an os-cpu pair. Either side may be
// the "*" wildcard; the zero value matches everything.
type Arch struct {
	OS  string
	CPU string
}

// HostArch is the architecture of the running process.
func HostArch() Arch {
	return Arch{OS: runtime.GOOS, CPU: runtime.GOARCH}
}

func ParseArch(raw string) (Arch, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*-*" {
		return Arch{OS: "*", CPU: "*"}, nil
	}
	osPart, cpuPart, ok := strings.Cut(raw, "-")
	if !ok {
		return Arch{}, fmt.Errorf("%w: arch %q", ErrInvalidFeed, raw)
	}
	return Arch{OS: osPart, CPU: cpuPart}, nil
}

// Matches reports whether an implementation built for a runs on host.
func (a Arch) Matches(host Arch) bool {
	if a.OS != "" && a.OS != "*" && a.OS != host.OS {
		return false
	}
	if a.CPU != "" && a.CPU != "*" && a.CPU != host.CPU {
		return false
	}
	return true
}

// Specificity orders architectures for tie-breaking: an exact os-cpu match
// beats a wildcard on either side.
func (a Arch) Specificity() int {
	n := 0
	if a.OS != "" && a.OS != "*" {
		n++
	}
	if a.CPU != "" && a.CPU != "*" {
		n++
	}
	return n
}

func (a Arch) String() string {
	osPart := a.OS
	if osPart == "" {
		osPart = "*"
	}
	cpuPart := a.CPU
	if cpuPart == "" {
		cpuPart = "*"
	}
	return osPart + "-" + cpuPart
}
