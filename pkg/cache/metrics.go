package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemoHits counts lookups answered from the memo.
	MemoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sincera_memo_hits_total",
		Help: "Total number of lookups answered from the in-run memo",
	})

	// MemoMisses counts lookups that had to go to the API.
	MemoMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sincera_memo_misses_total",
		Help: "Total number of lookups not found in the in-run memo",
	})

	// MemoEntries tracks the number of memoized identifiers.
	MemoEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sincera_memo_entries",
		Help: "Current number of identifiers held in the in-run memo",
	})
)
