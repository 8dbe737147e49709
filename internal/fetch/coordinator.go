package fetch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/spawnctl/internal/observability"
	"github.com/danmuck/spawnctl/internal/trust"
)

var (
	ErrNoValidSignature = errors.New("fetch: no valid signatures found")
	ErrKeyNotTrusted    = errors.New("fetch: not signed with a trusted key")
)

// ConfirmRequest is what the user (or calling front-end) sees before a new
// key is trusted.
type ConfirmRequest struct {
	Interface    string
	Domain       string
	Fingerprints []string
	Feed         []byte
}

// Confirmer decides whether newly seen signing keys become trusted. The
// CLI prompts; non-interactive callers refuse.
type Confirmer interface {
	ConfirmKeys(req ConfirmRequest) (bool, error)
}

type monitored struct {
	dl          *Download
	cancelWatch func()
}

// Coordinator tracks in-flight downloads keyed by URL and drives them to
// completion under the event loop. It owns the only mutable shared state
// in the engine (the URL table), and touches it exclusively from the loop's
// goroutine.
type Coordinator struct {
	loop      EventLoop
	fetcher   Fetcher
	trustDB   *trust.DB
	checker   trust.Checker
	confirmer Confirmer
	log       zerolog.Logger

	downloads map[string]*monitored
	waiting   bool
}

func NewCoordinator(loop EventLoop, fetcher Fetcher, trustDB *trust.DB, checker trust.Checker, confirmer Confirmer, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		loop:      loop,
		fetcher:   fetcher,
		trustDB:   trustDB,
		checker:   checker,
		confirmer: confirmer,
		log:       log,
		downloads: make(map[string]*monitored),
	}
}

// MonitorDownload starts dl's transfer and registers its diagnostic stream
// for readiness events.
func (c *Coordinator) MonitorDownload(dl *Download) {
	diag := dl.start(c.fetcher)
	m := &monitored{dl: dl}
	c.downloads[dl.URL] = m
	m.cancelWatch = c.loop.WatchReader(diag, func(data []byte) {
		c.streamReady(dl, data)
	})
	observability.RecordDownloadStarted()
	c.log.Debug().Str("url", dl.URL).Msg("monitoring download")
}

// GetDownload returns the tracked Download for url, starting one if absent.
// This is the sole dedup point: concurrent requests share one Download
// unless force supersedes it, in which case the prior instance is aborted
// and unwatched before its table slot is reused.
func (c *Coordinator) GetDownload(url string, force bool) *Download {
	if m, ok := c.downloads[url]; ok {
		if !force {
			return m.dl
		}
		c.log.Debug().Str("url", url).Msg("force-restarting download")
		m.dl.Abort()
		m.cancelWatch()
		delete(c.downloads, url)
		observability.RecordDownloadFinished("aborted")
	}

	dl := NewDownload(url)
	c.MonitorDownload(dl)
	return dl
}

// Tracked reports how many downloads are currently monitored.
func (c *Coordinator) Tracked() int { return len(c.downloads) }

// streamReady handles one readiness event for dl's diagnostic stream. An
// empty chunk is end-of-stream: the download is finished, successfully or
// not.
func (c *Coordinator) streamReady(dl *Download, data []byte) {
	if len(data) > 0 {
		dl.streamData(data)
		return
	}

	// A force-restart may have replaced the table entry; only the entry's
	// current owner gets to remove it.
	if m, ok := c.downloads[dl.URL]; ok && m.dl == dl {
		delete(c.downloads, dl.URL)
	}

	c.closeDownload(dl)

	if c.waiting && len(c.downloads) == 0 {
		c.loop.Quit()
	}
}

// closeDownload finalizes dl. Failures here have no synchronous caller, so
// they go to ReportError instead of unwinding the loop.
func (c *Coordinator) closeDownload(dl *Download) {
	defer func() {
		if r := recover(); r != nil {
			c.ReportError(fmt.Errorf("fetch: close handler for %s panicked: %v", dl.URL, r))
		}
	}()
	if err := dl.streamClosed(); err != nil {
		observability.RecordDownloadFinished("failed")
		c.ReportError(err)
		return
	}
	if dl.State() == DownloadComplete {
		observability.RecordDownloadFinished("complete")
		c.log.Debug().Str("url", dl.URL).Msg("download complete")
	}
}

// WaitForDownloads blocks until every tracked download finishes. Suitable
// for non-interactive callers; returns immediately when nothing is
// tracked. Re-entering while a wait is active is a programming error.
func (c *Coordinator) WaitForDownloads() {
	if len(c.downloads) == 0 {
		return
	}
	if c.waiting {
		panic("fetch: WaitForDownloads re-entered")
	}
	c.waiting = true
	defer func() { c.waiting = false }()

	c.log.Debug().Int("downloads", len(c.downloads)).Msg("waiting for downloads")
	c.loop.Run()
}

// Fetch is the blocking convenience used by the CLI: dedup through the
// table, wait, return the bytes.
func (c *Coordinator) Fetch(url string, force bool) ([]byte, error) {
	dl := c.GetDownload(url, force)
	c.WaitForDownloads()
	return dl.Data()
}

// ConfirmTrustKeys is invoked when a downloaded feed carries valid
// signatures from keys not yet trusted for its domain. On affirmative
// confirmation every valid key is persisted for the domain and trust
// observers are notified exactly once. On refusal nothing is written.
func (c *Coordinator) ConfirmTrustKeys(ifaceURI string, sigs []trust.Signature, feedData []byte) error {
	var valid []trust.Signature
	for _, sig := range sigs {
		if sig.Valid {
			valid = append(valid, sig)
		}
	}
	if len(valid) == 0 {
		descriptions := make([]string, 0, len(sigs))
		for _, sig := range sigs {
			descriptions = append(descriptions, "- "+sig.String())
		}
		return fmt.Errorf("%w; signatures:\n%s", ErrNoValidSignature, strings.Join(descriptions, "\n"))
	}

	domain, err := trust.DomainFromURL(ifaceURI)
	if err != nil {
		return err
	}

	fingerprints := make([]string, 0, len(valid))
	for _, sig := range valid {
		fingerprints = append(fingerprints, sig.Fingerprint)
	}

	ok, err := c.confirmer.ConfirmKeys(ConfirmRequest{
		Interface:    ifaceURI,
		Domain:       domain,
		Fingerprints: fingerprints,
		Feed:         feedData,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (domain %s)", ErrKeyNotTrusted, domain)
	}

	for _, fingerprint := range fingerprints {
		if err := c.trustDB.TrustKey(fingerprint, domain); err != nil {
			return err
		}
		c.log.Info().Str("fingerprint", fingerprint).Str("domain", domain).Msg("key trusted")
	}
	c.trustDB.Notify()
	return nil
}

// ReportError is the one-way sink for asynchronous errors that have no
// synchronous caller to return to.
func (c *Coordinator) ReportError(err error) {
	observability.RecordAsyncError()
	c.log.Error().Err(err).Msg("download error")
}
