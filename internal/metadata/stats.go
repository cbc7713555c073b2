package metadata

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProviderStats accumulates invocation counts and time for one provider.
type ProviderStats struct {
	Invocations uint64        `json:"invocations"`
	Duration    time.Duration `json:"duration"`
}

// Stats is a point-in-time snapshot of the Service counters.
type Stats struct {
	ValidGets        uint64 `json:"valid_gets"`
	RecursiveGets    uint64 `json:"recursive_gets"`
	CachePuts        uint64 `json:"cache_puts"`
	CacheHits        uint64 `json:"cache_hits"`
	CacheMisses      uint64 `json:"cache_misses"`
	CacheEvictions   uint64 `json:"cache_evictions"`
	CacheCurrentSize int    `json:"cache_current_size"`
	CacheMaximumSize int    `json:"cache_maximum_size"`

	// Notifications counts instance recomputations triggered by Notify.
	Notifications uint64 `json:"notifications"`
	// NotifyCutoffs counts cascades stopped at the configured depth.
	NotifyCutoffs uint64 `json:"notify_cutoffs"`
	// Rescans counts class-level notifications left for lazy recompute.
	Rescans uint64 `json:"rescans"`

	Providers map[string]ProviderStats `json:"providers,omitempty"`
}

// HitRate returns cache hits as a percentage of cache lookups
func (s Stats) HitRate() float64 {
	lookups := s.CacheHits + s.CacheMisses
	if lookups == 0 {
		return 0.0
	}
	return float64(s.CacheHits) / float64(lookups) * 100.0
}

// String renders the cache counters in a fixed order.
func (s Stats) String() string {
	return fmt.Sprintf(
		"validGets = %d, recursiveGets = %d, cachePuts = %d, cacheHits = %d, cacheMisses = %d, cacheEvictions = %d, cacheCurrentSize = %d, cacheMaximumSize = %d",
		s.ValidGets, s.RecursiveGets, s.CachePuts, s.CacheHits, s.CacheMisses,
		s.CacheEvictions, s.CacheCurrentSize, s.CacheMaximumSize,
	)
}

// ProviderReport renders per-provider timings sorted by class identifier.
func (s Stats) ProviderReport() string {
	types := make([]string, 0, len(s.Providers))
	for t := range s.Providers {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	for _, t := range types {
		ps := s.Providers[t]
		fmt.Fprintf(&b, "%s: invocations = %d, duration = %s\n", t, ps.Invocations, ps.Duration)
	}
	return b.String()
}
