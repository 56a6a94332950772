package pipeline

import (
	"strconv"

	"github.com/helixir/federated-search-service/internal/domain"
)

// generateFacets counts source, year, OA status, venue, publisher, and topic
// values across the fetched-and-merged set, then scales each count by
// totalCount/fetchedCount so reported figures approximate the full corpus
// rather than the fetched sample.
func generateFacets(records []domain.EnrichedRecord, totalCount int) map[string]domain.FacetCounts {
	facets := map[string]domain.FacetCounts{
		"source":    {},
		"year":      {},
		"oaStatus":  {},
		"venue":     {},
		"publisher": {},
		"topics":    {},
	}

	for i := range records {
		r := &records[i]
		facets["source"][string(r.Source)]++
		if r.Year > 0 {
			facets["year"][strconv.Itoa(r.Year)]++
		}
		facets["oaStatus"][string(r.OAStatus)]++
		if r.Venue != "" {
			facets["venue"][r.Venue]++
		}
		if r.Publisher != "" {
			facets["publisher"][r.Publisher]++
		}
		for _, topic := range r.Topics {
			facets["topics"][topic]++
		}
	}

	scale := 1.0
	if len(records) > 0 && totalCount > len(records) {
		scale = float64(totalCount) / float64(len(records))
	}
	if scale != 1.0 {
		for _, counts := range facets {
			for value, count := range counts {
				counts[value] = int(float64(count) * scale)
			}
		}
	}
	return facets
}
