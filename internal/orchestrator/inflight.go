package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// stream names one logical sequence of requests. Within a stream only the
// latest request matters.
type stream string

const (
	streamProjects stream = "projects"
	streamSessions stream = "sessions"
	streamMessages stream = "messages"
	streamSearch   stream = "search"
	streamStats    stream = "stats"
)

// request is the handle given to a provider call
type request struct {
	ID  string
	Gen uint64
	ctx context.Context
}

type activeRequest struct {
	id     string
	cancel context.CancelFunc
}

// inflight tracks the live request of every stream so that a superseded call
// can have its context cancelled. Cancellation is advisory: results are still
// filtered by generation when they arrive.
type inflight struct {
	base      context.Context
	stop      context.CancelFunc
	mu        sync.Mutex
	active    map[stream]activeRequest
	closed    bool
	closeOnce sync.Once
}

func newInflight() *inflight {
	base, stop := context.WithCancel(context.Background())
	return &inflight{
		base:   base,
		stop:   stop,
		active: make(map[stream]activeRequest),
	}
}

// begin registers a new request on s, cancelling the one it supersedes
func (f *inflight) begin(s stream, gen uint64) request {
	ctx, cancel := context.WithCancel(f.base)
	id := uuid.New().String()

	f.mu.Lock()
	if prev, ok := f.active[s]; ok {
		prev.cancel()
	}
	if f.closed {
		cancel()
	} else {
		f.active[s] = activeRequest{id: id, cancel: cancel}
	}
	f.mu.Unlock()

	return request{ID: id, Gen: gen, ctx: ctx}
}

// detached returns a request that is not tied to a stream (resume, delete)
func (f *inflight) detached() request {
	return request{ID: uuid.New().String(), ctx: f.base}
}

// finish releases the context of request id if it is still the live one
func (f *inflight) finish(s stream, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.active[s]; ok && cur.id == id {
		cur.cancel()
		delete(f.active, s)
	}
}

// cancel aborts the live request of s, if any
func (f *inflight) cancel(s stream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.active[s]; ok {
		cur.cancel()
		delete(f.active, s)
	}
}

// live reports whether s has a request in flight
func (f *inflight) live(s stream) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.active[s]
	return ok
}

// close cancels every request, including detached ones
func (f *inflight) close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		for s, cur := range f.active {
			cur.cancel()
			delete(f.active, s)
		}
		f.mu.Unlock()
		f.stop()
	})
}
