package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Transfer is one in-flight fetch owned by the transport. Diagnostics
// yields human-readable progress/error lines and hits end-of-file exactly
// when the transfer is over; Result is valid from that point on.
type Transfer interface {
	Diagnostics() io.ReadCloser
	Result() ([]byte, error)
	Abort()
}

// Fetcher starts transfers. It is the raw-transport collaborator; the
// coordinator never talks HTTP itself.
type Fetcher interface {
	Start(url string) Transfer
}

// HTTPFetcher fetches over HTTP with bounded retry on rate limiting.
type HTTPFetcher struct {
	Client  *http.Client
	Retries int
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 5 * time.Minute},
		Retries: 3,
	}
}

func (f *HTTPFetcher) Start(url string) Transfer {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	t := &httpTransfer{diag: pr, cancel: cancel}
	go t.run(ctx, f, url, pw)
	return t
}

type httpTransfer struct {
	diag   *io.PipeReader
	cancel context.CancelFunc

	mu   sync.Mutex
	data []byte
	err  error
}

func (t *httpTransfer) Diagnostics() io.ReadCloser { return t.diag }

func (t *httpTransfer) Result() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data, t.err
}

func (t *httpTransfer) Abort() {
	t.cancel()
}

func (t *httpTransfer) run(ctx context.Context, f *HTTPFetcher, url string, pw *io.PipeWriter) {
	data, err := t.get(ctx, f, url, pw)

	t.mu.Lock()
	t.data, t.err = data, err
	t.mu.Unlock()

	if err != nil {
		fmt.Fprintf(pw, "error: %v\n", err)
	}
	pw.Close()
}

// get mirrors the retry discipline used for upstream package mirrors:
// back off on 429, honoring Retry-After when present.
func (t *httpTransfer) get(ctx context.Context, f *HTTPFetcher, url string, pw *io.PipeWriter) ([]byte, error) {
	retries := max(f.Retries, 1)
	fmt.Fprintf(pw, "GET %s\n", url)

	for attempt := 0; attempt < retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.Client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			wait := 2 * time.Second * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			fmt.Fprintf(pw, "rate limited, retrying in %v (attempt %d/%d)\n", wait, attempt+1, retries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(pw, "received %d bytes\n", len(data))
		return data, nil
	}
	return nil, fmt.Errorf("rate limited after %d retries", retries)
}
