package orchestrator

import (
	"github.com/strrl/claude-history/pkg/models"
)

type statsRequest struct {
	Source models.Source
	Gen    uint64
}

// StatsAggregator memoizes the usage summary per source. There is no expiry:
// a source switch is the only thing that invalidates it.
type StatsAggregator struct {
	cache   map[models.Source]models.TokenUsageSummary
	loading bool
	err     error
	gen     uint64
}

// NewStatsAggregator creates an empty aggregator
func NewStatsAggregator() *StatsAggregator {
	return &StatsAggregator{cache: make(map[models.Source]models.TokenUsageSummary)}
}

// Summary returns the cached summary for source
func (a *StatsAggregator) Summary(source models.Source) (models.TokenUsageSummary, bool) {
	s, ok := a.cache[source]
	return s, ok
}

// Loading reports whether a fetch is in flight
func (a *StatsAggregator) Loading() bool { return a.loading }

// Err returns the last fetch failure
func (a *StatsAggregator) Err() error { return a.err }

// load returns a request unless source is already cached
func (a *StatsAggregator) load(source models.Source) (statsRequest, bool) {
	if _, ok := a.cache[source]; ok {
		return statsRequest{}, false
	}
	if a.loading {
		return statsRequest{}, false
	}
	return a.begin(source), true
}

// refresh always fetches; the cached value stays visible until replaced
func (a *StatsAggregator) refresh(source models.Source) statsRequest {
	return a.begin(source)
}

func (a *StatsAggregator) begin(source models.Source) statsRequest {
	a.gen++
	a.loading = true
	a.err = nil
	return statsRequest{Source: source, Gen: a.gen}
}

// invalidate forgets every cached summary and drops in-flight fetches
func (a *StatsAggregator) invalidate() {
	a.gen++
	a.loading = false
	a.err = nil
	a.cache = make(map[models.Source]models.TokenUsageSummary)
}

func (a *StatsAggregator) apply(msg StatsLoadedMsg) bool {
	if msg.Gen != a.gen || !a.loading {
		return false
	}
	a.loading = false
	if msg.Err != nil {
		a.err = visible(msg.Err)
		return true
	}
	a.cache[msg.Source] = msg.Summary
	return true
}
