package fs

import (
	"sync"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// debouncer collapses bursts of events into the last one. An atomic save
// produces several fsnotify events for a single logical change.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending core.Event
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// add schedules fn with event, replacing any event still pending.
func (d *debouncer) add(event core.Event, fn func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = event
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		e := d.pending
		d.mu.Unlock()
		fn(e)
	})
}

// stopAndWait rejects new events and waits up to timeout for fired timers.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
