package pipeline

import (
	"sort"
	"strings"

	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/merge"
)

// sortRecords orders the merged result set. Field sorts are stable so equal
// keys keep their merged order; the default is relevance.
func sortRecords(records []domain.EnrichedRecord, order domain.SortOrder) []domain.EnrichedRecord {
	switch order {
	case domain.SortDate:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return a.Year > b.Year })
	case domain.SortDateAsc:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return a.Year < b.Year })
	case domain.SortCitations:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return citations(a) > citations(b) })
	case domain.SortCitationsAsc:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return citations(a) < citations(b) })
	case domain.SortAuthor:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return firstAuthor(a) < firstAuthor(b) })
	case domain.SortAuthorDesc:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return firstAuthor(a) > firstAuthor(b) })
	case domain.SortVenue:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return lowerVenue(a) < lowerVenue(b) })
	case domain.SortVenueDesc:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return lowerVenue(a) > lowerVenue(b) })
	case domain.SortTitle:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return lowerTitle(a) < lowerTitle(b) })
	case domain.SortTitleDesc:
		stableSort(records, func(a, b *domain.EnrichedRecord) bool { return lowerTitle(a) > lowerTitle(b) })
	default:
		return sortByRelevance(records)
	}
	return records
}

// sortByRelevance ranks within each source by completeness score, then
// interleaves the per-source groups in global source priority order, so the
// page mixes providers instead of exhausting one before the next.
func sortByRelevance(records []domain.EnrichedRecord) []domain.EnrichedRecord {
	if len(records) < 2 {
		return records
	}

	groups := make(map[domain.Source][]domain.EnrichedRecord)
	for _, r := range records {
		groups[r.Source] = append(groups[r.Source], r)
	}

	var order []domain.Source
	for _, source := range domain.AllSources {
		if _, ok := groups[source]; ok {
			order = append(order, source)
		}
	}
	// Unknown sources rank after every known one.
	for source := range groups {
		if !source.IsKnown() {
			order = append(order, source)
		}
	}
	sortUnknownTail(order)

	for _, source := range order {
		group := groups[source]
		sort.SliceStable(group, func(i, j int) bool {
			return merge.Score(&group[i]) > merge.Score(&group[j])
		})
	}

	out := make([]domain.EnrichedRecord, 0, len(records))
	for i := 0; len(out) < len(records); i++ {
		for _, source := range order {
			group := groups[source]
			if i < len(group) {
				out = append(out, group[i])
			}
		}
	}
	return out
}

// sortUnknownTail keeps the appended unknown-source tail deterministic.
func sortUnknownTail(order []domain.Source) {
	tail := 0
	for i, s := range order {
		if s.IsKnown() {
			tail = i + 1
		}
	}
	unknown := order[tail:]
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
}

func stableSort(records []domain.EnrichedRecord, less func(a, b *domain.EnrichedRecord) bool) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(&records[i], &records[j])
	})
}

func citations(r *domain.EnrichedRecord) int {
	if r.CitationCount == nil {
		return -1
	}
	return *r.CitationCount
}

func firstAuthor(r *domain.EnrichedRecord) string {
	if len(r.Authors) == 0 {
		return "\uffff"
	}
	return strings.ToLower(r.Authors[0].Name)
}

func lowerVenue(r *domain.EnrichedRecord) string {
	if r.Venue == "" {
		return "\uffff"
	}
	return strings.ToLower(r.Venue)
}

func lowerTitle(r *domain.EnrichedRecord) string {
	return strings.ToLower(r.Title)
}
