// Package navigation turns a stream of URL-change events into debounced
// re-evaluations.
package navigation

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is how long the URL must stay unchanged before the
// re-evaluation runs.
const DefaultDelay = time.Second

// Watcher debounces URL changes. Each change that differs from the last
// seen URL (re)arms a timer; when it fires, the callback receives the
// latest URL.
type Watcher struct {
	delay time.Duration
	fn    func(url string)

	mu      sync.Mutex
	current string
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// NewWatcher creates a watcher that starts at initial. A non-positive delay
// selects DefaultDelay.
func NewWatcher(initial string, delay time.Duration,
	fn func(url string)) *Watcher {

	if delay <= 0 {
		delay = DefaultDelay
	}

	return &Watcher{
		delay:   delay,
		fn:      fn,
		current: initial,
	}
}

// Current returns the last observed URL.
func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.current
}

// Observe records a navigation to url. It reports whether the URL changed
// and a re-evaluation was scheduled.
func (w *Watcher) Observe(url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || url == w.current {
		return false
	}
	w.current = url

	if w.timer != nil {
		w.timer.Stop()
	}
	w.seq++
	seq := w.seq
	w.timer = time.AfterFunc(w.delay, func() { w.fire(seq) })

	return true
}

// fire runs the callback unless a later change superseded seq.
func (w *Watcher) fire(seq uint64) {
	w.mu.Lock()
	if w.stopped || seq != w.seq {
		w.mu.Unlock()
		return
	}
	url := w.current
	w.timer = nil
	w.mu.Unlock()

	w.fn(url)
}

// Run observes events until ctx is done or the channel closes, then stops
// the watcher.
func (w *Watcher) Run(ctx context.Context, events <-chan string) {
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case url, ok := <-events:
			if !ok {
				return
			}
			w.Observe(url)
		}
	}
}

// Stop cancels any pending re-evaluation. Later events are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
