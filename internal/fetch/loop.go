package fetch

import (
	"io"
	"sync"
	"sync/atomic"
)

// EventLoop serializes coordinator callbacks. The production Loop is
// caller-driven: Run executes on whichever goroutine calls it, so a batch
// caller blocks in WaitForDownloads while an interactive front-end can run
// the loop from its own main loop. Tests substitute a deterministic double.
type EventLoop interface {
	// Post queues fn for execution on the loop.
	Post(fn func())
	// Run processes queued work until Quit. Nested Run is a programming
	// error and panics.
	Run()
	// Quit makes the active Run return once the current batch finishes.
	Quit()
	// WatchReader delivers chunks read from r onto the loop. A final empty
	// chunk signals end of stream. The returned cancel stops delivery of
	// anything not yet handed to ready.
	WatchReader(r io.Reader, ready func(data []byte)) (cancel func())
}

// Loop is the default EventLoop.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	running bool
	quit    bool
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) Run() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		panic("fetch: nested event loop Run")
	}
	l.running = true
	l.quit = false
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		l.mu.Lock()
		quit := l.quit
		idle := len(l.pending) == 0
		l.mu.Unlock()

		if quit {
			return
		}
		if idle {
			<-l.wake
		}
	}
}

func (l *Loop) Quit() {
	l.mu.Lock()
	l.quit = true
	l.mu.Unlock()
	l.signal()
}

// watch is the per-stream delivery state. Cancellation takes effect
// immediately: chunks already queued on the loop are dropped, not delivered
// to a watcher that no longer exists.
type watch struct {
	cancelled atomic.Bool
}

func (l *Loop) WatchReader(r io.Reader, ready func(data []byte)) func() {
	w := &watch{}
	deliver := func(data []byte) {
		l.Post(func() {
			if !w.cancelled.Load() {
				ready(data)
			}
		})
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				deliver(chunk)
			}
			if err != nil {
				deliver(nil)
				return
			}
		}
	}()

	return func() {
		w.cancelled.Store(true)
	}
}
