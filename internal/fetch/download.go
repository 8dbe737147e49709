package fetch

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrDownloadFailed = errors.New("fetch: download failed")
	ErrAborted        = errors.New("fetch: download aborted")
	ErrNotFinished    = errors.New("fetch: download not finished")
)

// DownloadState is the lifecycle phase of one Download.
type DownloadState int

const (
	DownloadPending DownloadState = iota
	DownloadComplete
	DownloadFailed
	DownloadAborted
)

func (s DownloadState) String() string {
	switch s {
	case DownloadPending:
		return "pending"
	case DownloadComplete:
		return "complete"
	case DownloadFailed:
		return "failed"
	case DownloadAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Download is one tracked transfer, owned by the Coordinator for its
// lifetime. All methods run on the loop goroutine.
type Download struct {
	URL string

	transfer Transfer
	state    DownloadState
	diag     strings.Builder
	data     []byte
	err      error
}

func NewDownload(url string) *Download {
	return &Download{URL: url}
}

// start begins the transfer and returns its diagnostic stream. The stream
// reaches end-of-file exactly when the transfer is over.
func (d *Download) start(fetcher Fetcher) io.ReadCloser {
	d.transfer = fetcher.Start(d.URL)
	return d.transfer.Diagnostics()
}

// streamData consumes one chunk of diagnostic output, delivered in stream
// order.
func (d *Download) streamData(p []byte) {
	d.diag.Write(p)
}

// streamClosed finalizes the download after its diagnostic stream ended.
// The returned error is the transfer failure, annotated with whatever the
// transport wrote to the diagnostic stream.
func (d *Download) streamClosed() error {
	if d.state == DownloadAborted {
		return nil
	}
	data, err := d.transfer.Result()
	if err != nil {
		d.state = DownloadFailed
		d.err = fmt.Errorf("%w: %s: %v", ErrDownloadFailed, d.URL, err)
		if diag := strings.TrimSpace(d.diag.String()); diag != "" {
			d.err = fmt.Errorf("%w\n%s", d.err, diag)
		}
		return d.err
	}
	d.state = DownloadComplete
	d.data = data
	return nil
}

// Abort cancels the transfer and releases its resources. The diagnostic
// stream is closed as a side effect, so any watcher sees end-of-file.
func (d *Download) Abort() {
	if d.state != DownloadPending {
		return
	}
	d.state = DownloadAborted
	d.err = fmt.Errorf("%w: %s", ErrAborted, d.URL)
	if d.transfer != nil {
		d.transfer.Abort()
	}
}

func (d *Download) State() DownloadState { return d.state }

// Diagnostics returns the transfer's accumulated diagnostic output.
func (d *Download) Diagnostics() string { return d.diag.String() }

// Data returns the fetched bytes once the download completed.
func (d *Download) Data() ([]byte, error) {
	switch d.state {
	case DownloadComplete:
		return d.data, nil
	case DownloadFailed, DownloadAborted:
		return nil, d.err
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFinished, d.URL)
	}
}
