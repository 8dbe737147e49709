package fetch

import (
	"errors"
	"fmt"

	"github.com/danmuck/spawnctl/internal/feed"
	"github.com/danmuck/spawnctl/internal/trust"
)

var ErrFeedMismatch = errors.New("fetch: feed names a different interface")

// RetrieveFeed downloads, verifies, and parses the feed for one interface.
// The signature gate runs before parsing: a feed signed only by unknown
// keys goes through ConfirmTrustKeys, and refusal means the raw bytes are
// discarded. The returned payload is the verified XML, ready for the feed
// cache.
func (c *Coordinator) RetrieveFeed(uri string, force bool) (*feed.Interface, []byte, error) {
	raw, err := c.Fetch(uri, force)
	if err != nil {
		return nil, nil, err
	}

	content, sigs, err := c.checker.Check(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("feed %s: %w", uri, err)
	}

	domain, err := trust.DomainFromURL(uri)
	if err != nil {
		return nil, nil, err
	}

	trusted := false
	for _, sig := range sigs {
		if sig.Valid && c.trustDB.IsTrusted(sig.Fingerprint, domain) {
			trusted = true
			break
		}
	}
	if !trusted {
		if err := c.ConfirmTrustKeys(uri, sigs, raw); err != nil {
			return nil, nil, err
		}
	}

	iface, err := feed.Parse(content)
	if err != nil {
		return nil, nil, fmt.Errorf("feed %s: %w", uri, err)
	}
	if iface.URI != uri {
		return nil, nil, fmt.Errorf("%w: requested %s, got %s", ErrFeedMismatch, uri, iface.URI)
	}
	return iface, content, nil
}
