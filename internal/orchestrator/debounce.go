package orchestrator

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// DebounceMsg is produced when a debounce timer elapses
type DebounceMsg struct {
	Key string
	Gen uint64
}

// Debouncer is a cancellable timer stamped with a generation. Every Trigger
// supersedes the previous one; only the timer matching the latest generation
// fires. Cancel supersedes without starting a new timer.
//
// Not safe for concurrent use; drive it from the goroutine that owns it.
type Debouncer struct {
	key     string
	delay   time.Duration
	gen     uint64
	pending bool
}

// NewDebouncer creates a debouncer whose messages carry key
func NewDebouncer(key string, delay time.Duration) *Debouncer {
	return &Debouncer{key: key, delay: delay}
}

// Trigger restarts the timer and returns the command that waits for it
func (d *Debouncer) Trigger() tea.Cmd {
	d.gen++
	d.pending = true
	key, gen := d.key, d.gen
	return tea.Tick(d.delay, func(time.Time) tea.Msg {
		return DebounceMsg{Key: key, Gen: gen}
	})
}

// Cancel drops the pending timer, if any
func (d *Debouncer) Cancel() {
	d.gen++
	d.pending = false
}

// Fire reports whether msg is the live timer for this debouncer and, if so,
// consumes it.
func (d *Debouncer) Fire(msg DebounceMsg) bool {
	if msg.Key != d.key || msg.Gen != d.gen || !d.pending {
		return false
	}
	d.pending = false
	return true
}

// Pending reports whether a timer is waiting to fire
func (d *Debouncer) Pending() bool {
	return d.pending
}

// Delay returns the debounce interval
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
