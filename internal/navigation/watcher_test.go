package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDelay = 50 * time.Millisecond

func collector() (func(string), <-chan string) {
	ch := make(chan string, 16)
	return func(url string) { ch <- url }, ch
}

func TestWatcherDebounces(t *testing.T) {
	t.Parallel()

	fn, fired := collector()
	w := NewWatcher("https://a", testDelay, fn)
	defer w.Stop()

	require.True(t, w.Observe("https://b"))
	require.True(t, w.Observe("https://c"))
	require.True(t, w.Observe("https://d"))

	select {
	case url := <-fired:
		require.Equal(t, "https://d", url)
	case <-time.After(2 * time.Second):
		t.Fatal("re-evaluation never ran")
	}

	select {
	case url := <-fired:
		t.Fatalf("unexpected second re-evaluation for %s", url)
	case <-time.After(3 * testDelay):
	}
}

func TestWatcherIgnoresSameURL(t *testing.T) {
	t.Parallel()

	fn, fired := collector()
	w := NewWatcher("https://a", testDelay, fn)
	defer w.Stop()

	require.False(t, w.Observe("https://a"))
	require.Equal(t, "https://a", w.Current())

	select {
	case url := <-fired:
		t.Fatalf("unexpected re-evaluation for %s", url)
	case <-time.After(3 * testDelay):
	}
}

func TestWatcherStopCancelsPending(t *testing.T) {
	t.Parallel()

	fn, fired := collector()
	w := NewWatcher("", testDelay, fn)

	require.True(t, w.Observe("https://b"))
	w.Stop()
	require.False(t, w.Observe("https://c"))

	select {
	case url := <-fired:
		t.Fatalf("unexpected re-evaluation for %s", url)
	case <-time.After(3 * testDelay):
	}
}

func TestWatcherRun(t *testing.T) {
	t.Parallel()

	fn, fired := collector()
	w := NewWatcher("https://a", testDelay, fn)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan string)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, events)
		close(done)
	}()

	events <- "https://b"
	require.Equal(t, "https://b", <-fired)

	cancel()
	<-done

	require.False(t, w.Observe("https://c"))
}

func TestDefaultDelay(t *testing.T) {
	t.Parallel()

	w := NewWatcher("", 0, func(string) {})
	require.Equal(t, DefaultDelay, w.delay)
}
