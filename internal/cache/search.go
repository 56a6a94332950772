package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// SimilarityThreshold is the minimum Jaccard similarity between query term
// sets for one query's cached results to serve another.
const SimilarityThreshold = 0.7

// maxTrackedQueries bounds the in-memory index used for similarity lookups.
const maxTrackedQueries = 512

// SearchCache derives deterministic keys for search responses and serves
// near-duplicate queries from a Jaccard-similarity index over recently cached
// term sets.
type SearchCache struct {
	manager *Manager
	logger  zerolog.Logger

	mu      sync.Mutex
	tracked []trackedQuery
}

type trackedQuery struct {
	key   string
	terms map[string]struct{}
}

// NewSearchCache creates a search-results cache over the tiered manager.
func NewSearchCache(manager *Manager, logger zerolog.Logger) *SearchCache {
	return &SearchCache{
		manager: manager,
		logger:  logger.With().Str("component", "search_cache").Logger(),
	}
}

// Key builds the deterministic cache key for a search request. Equal queries
// with equal filters, pagination, and sort always map to the same key.
func (c *SearchCache) Key(req domain.SearchRequest) string {
	f := req.Filters
	parts := []string{
		domain.NormalizeTitle(req.Query),
		domain.NormalizeDOI(req.DOI),
		canonicalStrings(sourceStrings(f.Sources)),
		fmt.Sprintf("%d-%d", f.YearFrom, f.YearTo),
		canonicalStrings(oaStatusStrings(f.OAStatuses)),
		canonicalStrings(f.Venues),
		canonicalStrings(f.Publishers),
		canonicalStrings(f.Topics),
		f.PublicationType,
		fmt.Sprintf("%t", f.RequireOAPDF),
		fmt.Sprintf("p%d-s%d", req.Page, req.PageSize),
		string(req.Sort),
	}
	return GenerateKey("search", parts...)
}

// Get returns the cached response for the exact request, or nil on miss.
func (c *SearchCache) Get(ctx context.Context, req domain.SearchRequest) *domain.SearchResponse {
	return c.getByKey(ctx, c.Key(req))
}

// GetSimilar returns a cached response from the most similar previously
// cached query, provided the term-set Jaccard similarity reaches the
// threshold and the filters match exactly. Returns nil when nothing
// qualifies.
func (c *SearchCache) GetSimilar(ctx context.Context, req domain.SearchRequest) *domain.SearchResponse {
	// Only unfiltered keyword queries participate; filtered results are
	// not interchangeable across queries.
	terms := queryTerms(req.Query)
	if len(terms) == 0 || !req.Filters.IsZero() {
		return nil
	}

	c.mu.Lock()
	bestKey := ""
	bestScore := 0.0
	for _, t := range c.tracked {
		score := jaccard(terms, t.terms)
		if score >= SimilarityThreshold && score > bestScore {
			bestScore = score
			bestKey = t.key
		}
	}
	c.mu.Unlock()

	if bestKey == "" {
		return nil
	}
	resp := c.getByKey(ctx, bestKey)
	if resp != nil {
		c.logger.Debug().
			Float64("similarity", bestScore).
			Msg("served search from similar cached query")
	}
	return resp
}

// Set caches the response under the request's key and registers the query's
// term set for similarity lookups.
func (c *SearchCache) Set(ctx context.Context, req domain.SearchRequest, resp *domain.SearchResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal search response")
		return
	}

	key := c.Key(req)
	_ = c.manager.Set(ctx, key, payload, StrategySearchResults)

	terms := queryTerms(req.Query)
	if len(terms) == 0 || !req.Filters.IsZero() {
		// Only unfiltered keyword queries participate in similarity
		// serving; filtered results are not interchangeable.
		return
	}

	c.mu.Lock()
	c.tracked = append(c.tracked, trackedQuery{key: key, terms: terms})
	if len(c.tracked) > maxTrackedQueries {
		c.tracked = c.tracked[len(c.tracked)-maxTrackedQueries:]
	}
	c.mu.Unlock()
}

// Invalidate drops every cached search response.
func (c *SearchCache) Invalidate(ctx context.Context) int {
	c.mu.Lock()
	c.tracked = nil
	c.mu.Unlock()
	return c.manager.InvalidatePattern(ctx, "search:")
}

func (c *SearchCache) getByKey(ctx context.Context, key string) *domain.SearchResponse {
	payload, err := c.manager.Get(ctx, key, StrategySearchResults)
	if err != nil {
		return nil
	}
	var resp domain.SearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("corrupt cached search response")
		_ = c.manager.Delete(ctx, key)
		return nil
	}
	return &resp
}

// queryTerms tokenizes a query into a lowercase term set.
func queryTerms(query string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return nil
	}
	terms := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		terms[f] = struct{}{}
	}
	return terms
}

// jaccard computes |a∩b| / |a∪b| over two term sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func canonicalStrings(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	copy(sorted, values)
	sort.Strings(sorted)
	return strings.ToLower(strings.Join(sorted, ","))
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

func oaStatusStrings(statuses []domain.OAStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
