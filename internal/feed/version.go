package feed

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two implementation versions, -1/0/+1 like
// strings.Compare. Versions that both parse as semantic versions are
// ordered semantically; anything else (native package versions mostly)
// falls back to a lexical compare so the ordering stays deterministic.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(strings.TrimSpace(a))
	vb, errB := semver.NewVersion(strings.TrimSpace(b))
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(strings.TrimSpace(a), strings.TrimSpace(b))
}
