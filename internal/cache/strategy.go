// Package cache implements the three-tier cache: a small in-process LRU (L1),
// a shared network store (L2), and a larger bounded local store (L3). Reads
// promote values toward L1; writes land in all tiers with per-strategy TTLs
// that strictly increase from L1 to L3.
package cache

import "time"

// Strategy names a cache workload with its own TTL profile.
type Strategy string

const (
	StrategySearchResults Strategy = "search_results"
	StrategyPaperDetails  Strategy = "paper_details"
	StrategyAPIResponses  Strategy = "api_responses"
	StrategyFacets        Strategy = "facets"
	StrategyMetadata      Strategy = "metadata"
)

// AllStrategies lists every cache strategy.
var AllStrategies = []Strategy{
	StrategySearchResults,
	StrategyPaperDetails,
	StrategyAPIResponses,
	StrategyFacets,
	StrategyMetadata,
}

// TTLProfile holds the per-tier lifetimes for one strategy.
// Invariant: L1 < L2 < L3.
type TTLProfile struct {
	L1 time.Duration
	L2 time.Duration
	L3 time.Duration
}

var defaultTTLs = map[Strategy]TTLProfile{
	StrategySearchResults: {L1: 5 * time.Minute, L2: 15 * time.Minute, L3: time.Hour},
	StrategyPaperDetails:  {L1: 30 * time.Minute, L2: 2 * time.Hour, L3: 24 * time.Hour},
	StrategyAPIResponses:  {L1: 2 * time.Minute, L2: 10 * time.Minute, L3: 30 * time.Minute},
	StrategyFacets:        {L1: 10 * time.Minute, L2: 30 * time.Minute, L3: 2 * time.Hour},
	StrategyMetadata:      {L1: time.Hour, L2: 6 * time.Hour, L3: 48 * time.Hour},
}

// TTLFor returns the TTL profile for a strategy, with overrides applied on
// top of the defaults. Unknown strategies fall back to the API-responses
// profile, the shortest-lived one.
func TTLFor(strategy Strategy, overrides map[Strategy]TTLProfile) TTLProfile {
	if overrides != nil {
		if p, ok := overrides[strategy]; ok {
			return p
		}
	}
	if p, ok := defaultTTLs[strategy]; ok {
		return p
	}
	return defaultTTLs[StrategyAPIResponses]
}
