package cache

import (
	cmap "github.com/orcaman/concurrent-map"

	"github.com/miyaichi/sincera-data-processor/pkg/publisher"
)

// Memo maps identifiers to their lookup result.
type Memo struct {
	results cmap.ConcurrentMap
}

// NewMemo creates an empty memo.
func NewMemo() *Memo {
	return &Memo{
		results: cmap.New(),
	}
}

// Get returns the memoized result for req. A hit is re-targeted at req so
// that the row keeps its own input identifiers.
func (m *Memo) Get(req publisher.LookupRequest) (publisher.LookupResult, bool) {
	value, ok := m.results.Get(Key(req))
	if !ok {
		MemoMisses.Inc()
		return publisher.LookupResult{}, false
	}

	res, ok := value.(publisher.LookupResult)
	if !ok {
		MemoMisses.Inc()
		return publisher.LookupResult{}, false
	}

	MemoHits.Inc()
	return res.ForRequest(req), true
}

// Set stores a terminal result. Non-terminal results are ignored; a run
// interrupted mid-lookup must not poison later rows.
func (m *Memo) Set(req publisher.LookupRequest, res publisher.LookupResult) {
	if !res.State.IsTerminal() {
		return
	}
	m.results.Set(Key(req), res)
	MemoEntries.Set(float64(m.results.Count()))
}

// Len returns the number of memoized identifiers.
func (m *Memo) Len() int {
	return m.results.Count()
}
