package orchestrator

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strrl/claude-history/pkg/models"
)

const (
	// DefaultSearchDebounce is how long input must settle before searching
	DefaultSearchDebounce = 300 * time.Millisecond
	// DefaultMaxResults caps the number of hits requested
	DefaultMaxResults = 50

	searchDebounceKey = "search"
)

type searchRequest struct {
	Query      string
	MaxResults int
	Gen        uint64
}

// SearchCoordinator turns keystrokes into at most one search per settled
// query. Results are applied in dispatch order: a response is accepted only
// if it belongs to the most recently dispatched query.
type SearchCoordinator struct {
	debounce     *Debouncer
	maxResults   int
	query        string
	results      []models.SearchResult
	resultsQuery string
	inFlight     bool
	err          error
	gen          uint64
}

// NewSearchCoordinator creates a coordinator with the given debounce and cap
func NewSearchCoordinator(delay time.Duration, maxResults int) *SearchCoordinator {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SearchCoordinator{
		debounce:   NewDebouncer(searchDebounceKey, delay),
		maxResults: maxResults,
	}
}

// Query returns the text as typed, including pending keystrokes
func (c *SearchCoordinator) Query() string { return c.query }

// Results returns the current result set
func (c *SearchCoordinator) Results() []models.SearchResult { return c.results }

// ResultsQuery returns the query that produced Results
func (c *SearchCoordinator) ResultsQuery() string { return c.resultsQuery }

// Err returns the last search failure
func (c *SearchCoordinator) Err() error { return c.err }

// Loading reports whether a search is in flight or waiting for input to
// settle. Pending input counts so that views never flash "no results" while
// the user is still typing.
func (c *SearchCoordinator) Loading() bool {
	return c.inFlight || c.debounce.Pending()
}

// NoResults reports whether the view should show an empty-result placeholder
func (c *SearchCoordinator) NoResults() bool {
	return c.query != "" && !c.Loading() && len(c.results) == 0
}

// setQuery records q and returns the debounce command. The second return is
// true when the query was blank and the state was cleared.
func (c *SearchCoordinator) setQuery(q string) (tea.Cmd, bool) {
	c.query = q
	if strings.TrimSpace(q) == "" {
		c.clear()
		return nil, true
	}
	return c.debounce.Trigger(), false
}

// fire consumes a debounce message and returns the request to dispatch
func (c *SearchCoordinator) fire(msg DebounceMsg) (searchRequest, bool) {
	if !c.debounce.Fire(msg) {
		return searchRequest{}, false
	}
	return c.begin()
}

// flush dispatches the current query immediately
func (c *SearchCoordinator) flush() (searchRequest, bool) {
	c.debounce.Cancel()
	return c.begin()
}

func (c *SearchCoordinator) begin() (searchRequest, bool) {
	q := strings.TrimSpace(c.query)
	if q == "" {
		c.clear()
		return searchRequest{}, false
	}
	c.gen++
	c.inFlight = true
	c.err = nil
	return searchRequest{Query: q, MaxResults: c.maxResults, Gen: c.gen}, true
}

// clear empties results and supersedes any pending or in-flight search
func (c *SearchCoordinator) clear() {
	c.debounce.Cancel()
	c.gen++
	c.inFlight = false
	c.results = nil
	c.resultsQuery = ""
	c.err = nil
}

// apply folds a response in; false means it was stale
func (c *SearchCoordinator) apply(msg SearchResultMsg) bool {
	if msg.Gen != c.gen || !c.inFlight {
		return false
	}
	c.inFlight = false

	if err := visible(msg.Err); err != nil {
		c.err = err
		if c.resultsQuery != msg.Query {
			c.results = nil
			c.resultsQuery = ""
		}
		return true
	} else if msg.Err != nil {
		return true
	}

	c.results = msg.Results
	c.resultsQuery = msg.Query
	return true
}
