package pipeline

import (
	"strings"

	"github.com/helixir/federated-search-service/internal/domain"
)

// publicationTypeSources maps a publication-type filter value to the sources
// whose records count as that type.
var publicationTypeSources = map[string][]domain.Source{
	"journal-article": {
		domain.SourceCrossref, domain.SourceOpenAlex, domain.SourceEuropePMC,
		domain.SourceNCBI, domain.SourceDOAJ,
	},
	"preprint": {
		domain.SourceArXiv, domain.SourceEuropePMC, domain.SourceCORE,
	},
	"dataset": {
		domain.SourceDataCite, domain.SourceOpenAIRE,
	},
}

// publicationTypeAdjustment approximates what fraction of the estimated
// corpus a publication-type filter retains. True per-filter counts would
// require re-running every provider count.
var publicationTypeAdjustment = map[string]float64{
	"journal-article": 0.7,
	"preprint":        0.2,
	"dataset":         0.1,
}

// applyFilters keeps only the records matching every set constraint.
func applyFilters(records []domain.EnrichedRecord, f domain.Filters) []domain.EnrichedRecord {
	if f.IsZero() {
		return records
	}

	sourceSet := toSourceSet(f.Sources)
	oaSet := toOASet(f.OAStatuses)
	venueSet := toLowerSet(f.Venues)
	publisherSet := toLowerSet(f.Publishers)
	topicSet := toLowerSet(f.Topics)
	typeSet := toSourceSet(publicationTypeSources[f.PublicationType])

	out := make([]domain.EnrichedRecord, 0, len(records))
	for i := range records {
		if matchesFilters(&records[i], f, sourceSet, oaSet, venueSet, publisherSet, topicSet, typeSet) {
			out = append(out, records[i])
		}
	}
	return out
}

func matchesFilters(
	r *domain.EnrichedRecord,
	f domain.Filters,
	sourceSet map[domain.Source]struct{},
	oaSet map[domain.OAStatus]struct{},
	venueSet, publisherSet, topicSet map[string]struct{},
	typeSet map[domain.Source]struct{},
) bool {
	if len(sourceSet) > 0 {
		if _, ok := sourceSet[r.Source]; !ok {
			return false
		}
	}
	if f.YearFrom > 0 && (r.Year == 0 || r.Year < f.YearFrom) {
		return false
	}
	if f.YearTo > 0 && (r.Year == 0 || r.Year > f.YearTo) {
		return false
	}
	if len(oaSet) > 0 {
		if _, ok := oaSet[r.OAStatus]; !ok {
			return false
		}
	}
	if len(venueSet) > 0 {
		if _, ok := venueSet[strings.ToLower(r.Venue)]; !ok {
			return false
		}
	}
	if len(publisherSet) > 0 {
		if _, ok := publisherSet[strings.ToLower(r.Publisher)]; !ok {
			return false
		}
	}
	if len(topicSet) > 0 && !hasAnyTopic(r.Topics, topicSet) {
		return false
	}
	if f.PublicationType != "" && len(typeSet) > 0 {
		if _, ok := typeSet[r.Source]; !ok {
			return false
		}
	}
	if f.RequireOAPDF {
		if r.OAStatus == domain.OAStatusOther {
			return false
		}
		if r.PDFURL == "" && r.BestPDFURL == "" {
			return false
		}
	}
	return true
}

func hasAnyTopic(topics []string, topicSet map[string]struct{}) bool {
	for _, t := range topics {
		if _, ok := topicSet[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func toSourceSet(sources []domain.Source) map[domain.Source]struct{} {
	if len(sources) == 0 {
		return nil
	}
	set := make(map[domain.Source]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	return set
}

func toOASet(statuses []domain.OAStatus) map[domain.OAStatus]struct{} {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[domain.OAStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

func toLowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
