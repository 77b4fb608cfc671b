package orchestrator

import (
	"github.com/strrl/claude-history/pkg/models"
)

const (
	// DefaultPageSize is the number of messages requested per page
	DefaultPageSize = 50
	// DefaultScrollThreshold is how many lines from the bottom of the message
	// list a consumer should ask for the next page
	DefaultScrollThreshold = 5
)

// NearBottom reports whether a scroll position is within threshold of the end
// of the content. offset is the index of the first visible line, visible the
// height of the viewport and total the number of content lines.
func NearBottom(offset, visible, total, threshold int) bool {
	return total-offset-visible < threshold
}

// pageRequest describes one page to fetch
type pageRequest struct {
	Ref      models.SessionRef
	Page     int
	PageSize int
	Gen      uint64
}

// Pager holds the growing message window of the selected session. Pages are
// applied strictly in order starting at page 0; anything else is dropped.
// Mutation happens through the Store; views only read.
type Pager struct {
	ref      models.SessionRef
	pageSize int
	page     int
	want     int
	total    int
	hasMore  bool
	loading  bool
	loaded   bool
	items    []models.Message
	err      error
	gen      uint64
}

// NewPager creates an empty pager
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{pageSize: pageSize}
}

// Ref returns the session the window belongs to
func (p *Pager) Ref() models.SessionRef { return p.ref }

// Page returns the index of the last applied page
func (p *Pager) Page() int { return p.page }

// PageSize returns the page size used for requests
func (p *Pager) PageSize() int { return p.pageSize }

// Total returns the session's message count as reported by the provider
func (p *Pager) Total() int { return p.total }

// HasMore reports whether further pages exist
func (p *Pager) HasMore() bool { return p.hasMore }

// Loading reports whether a page request is in flight
func (p *Pager) Loading() bool { return p.loading }

// Loaded reports whether the first page has been applied
func (p *Pager) Loaded() bool { return p.loaded }

// Items returns the accumulated messages in page order
func (p *Pager) Items() []models.Message { return p.items }

// Err returns the error of the last failed page load
func (p *Pager) Err() error { return p.err }

// Exhausted reports whether every page has been loaded
func (p *Pager) Exhausted() bool { return p.loaded && !p.hasMore }

// reset empties the window and points it at ref. Responses for the previous
// session are invalidated.
func (p *Pager) reset(ref models.SessionRef) {
	p.gen++
	p.ref = ref
	p.page = 0
	p.want = 0
	p.total = 0
	p.hasMore = false
	p.loading = false
	p.loaded = false
	p.items = nil
	p.err = nil
}

func (p *Pager) beginFirst() (pageRequest, bool) {
	if p.ref.IsZero() {
		return pageRequest{}, false
	}
	p.gen++
	p.want = 0
	p.loading = true
	p.err = nil
	return pageRequest{Ref: p.ref, Page: 0, PageSize: p.pageSize, Gen: p.gen}, true
}

func (p *Pager) beginNext() (pageRequest, bool) {
	if p.ref.IsZero() || !p.loaded || p.loading || !p.hasMore {
		return pageRequest{}, false
	}
	p.want = p.page + 1
	p.loading = true
	p.err = nil
	return pageRequest{Ref: p.ref, Page: p.want, PageSize: p.pageSize, Gen: p.gen}, true
}

// apply folds a page result into the window. It returns false when the
// result is stale and was dropped.
func (p *Pager) apply(msg PageLoadedMsg) bool {
	if msg.Gen != p.gen || msg.Ref != p.ref || !p.loading || msg.Page != p.want {
		return false
	}
	p.loading = false
	if msg.Err != nil {
		p.err = visible(msg.Err)
		return true
	}

	if msg.Page == 0 {
		p.items = append([]models.Message(nil), msg.Result.Messages...)
	} else {
		p.items = append(p.items, msg.Result.Messages...)
	}
	p.page = msg.Page
	p.total = msg.Result.Total
	// A page can decode to nothing while rows remain past it. Only a page
	// that is empty and reaches the end of the total stops pagination.
	p.hasMore = msg.Result.HasMore &&
		(len(msg.Result.Messages) > 0 || (msg.Page+1)*p.pageSize < msg.Result.Total)
	p.loaded = true
	return true
}
