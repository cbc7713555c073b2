package watch

import (
	"sort"
	"sync"
	"time"
)

// Debouncer batches file changes. A batch is delivered once no change has
// arrived for the quiet period, or once the oldest pending change has waited
// maxWait, whichever comes first.
type Debouncer struct {
	quiet    time.Duration
	maxWait  time.Duration
	mu       sync.Mutex
	pending  map[string]struct{}
	first    time.Time
	timer    *time.Timer
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a debouncer whose batches wait at most ten quiet periods
func NewDebouncer(quiet time.Duration) *Debouncer {
	return &Debouncer{
		quiet:   quiet,
		maxWait: 10 * quiet,
		pending: make(map[string]struct{}),
	}
}

// Add records a changed file and restarts the quiet period
func (d *Debouncer) Add(file string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	if len(d.pending) == 0 {
		d.first = now
	}
	d.pending[file] = struct{}{}

	delay := d.quiet
	if deadline := d.first.Add(d.maxWait); now.Add(delay).After(deadline) {
		delay = deadline.Sub(now)
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(delay, d.flush)
		return
	}
	d.timer.Stop()
	d.timer.Reset(delay)
}

// Pending returns the number of files waiting for delivery
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// flush delivers the pending files sorted. The callback runs unlocked so it
// may call Add.
func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}

	batch := make([]string, 0, len(d.pending))
	for file := range d.pending {
		batch = append(batch, file)
	}
	sort.Strings(batch)
	d.pending = make(map[string]struct{})
	callback := d.callback
	d.mu.Unlock()

	if callback != nil {
		callback(batch)
	}
}

// SetCallback sets the function receiving each batch
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callback = callback
}

// Stop discards pending files. Later calls to Add are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
	d.pending = make(map[string]struct{})
}
