// Package merge collapses records gathered from multiple providers into one
// enriched record per logical work. Grouping is by normalized DOI when
// present; conflicts are resolved by the global source priority order and a
// completeness score.
package merge

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Scoring weights for the completeness and source-quality resolver.
const (
	weightTitle     = 10.0
	weightAuthors   = 10.0
	weightAbstract  = 10.0
	weightYear      = 5.0
	weightVenue     = 5.0
	weightCanonical = 3.0
	weightPDF       = 15.0
	weightLicense   = 5.0
	weightRedist    = 5.0
	weightCitations = 10.0

	// citationCap bounds the citation contribution so a single highly
	// cited record cannot dominate completeness.
	citationCap = 100
)

// Merger deduplicates and enriches provider records. It is stateless and safe
// for concurrent use.
type Merger struct {
	logger zerolog.Logger
}

// NewMerger creates a record merger.
func NewMerger(logger zerolog.Logger) *Merger {
	return &Merger{
		logger: logger.With().Str("component", "merger").Logger(),
	}
}

// DeduplicateByDOI groups records by normalized DOI and collapses each group
// into one enriched record. The highest-priority source in a group becomes
// the primary; every other member only fills fields the primary left empty.
// Records without a DOI pass through unchanged, each as its own enriched
// record. Group order follows first appearance in the input.
//
// Returns domain.ErrEmptyMergeInput when records is empty.
func (m *Merger) DeduplicateByDOI(records []domain.Record) ([]domain.EnrichedRecord, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyMergeInput
	}

	type group struct {
		key     string
		members []domain.Record
	}

	var order []string
	groups := make(map[string]*group)
	var passthrough []domain.EnrichedRecord

	for _, rec := range records {
		doi := domain.NormalizeDOI(rec.DOI)
		if doi == "" {
			passthrough = append(passthrough, toEnriched(rec))
			continue
		}
		g, ok := groups[doi]
		if !ok {
			g = &group{key: doi}
			groups[doi] = g
			order = append(order, doi)
		}
		g.members = append(g.members, rec)
	}

	merged := make([]domain.EnrichedRecord, 0, len(order)+len(passthrough))
	for _, key := range order {
		merged = append(merged, m.mergeGroup(groups[key].members))
	}
	merged = append(merged, passthrough...)

	m.logger.Debug().
		Int("input", len(records)).
		Int("output", len(merged)).
		Msg("deduplicated by doi")
	return merged, nil
}

// Deduplicate runs DeduplicateByDOI and then a defensive resolver: if several
// enriched records still share a merge key, only the highest-scoring one
// survives. The operation is idempotent.
func (m *Merger) Deduplicate(records []domain.Record) ([]domain.EnrichedRecord, error) {
	merged, err := m.DeduplicateByDOI(records)
	if err != nil {
		return nil, err
	}
	return m.Resolve(merged), nil
}

// Resolve keeps exactly one record per merge key, choosing the candidate with
// the highest completeness score. Input order is preserved for the survivors.
func (m *Merger) Resolve(records []domain.EnrichedRecord) []domain.EnrichedRecord {
	type slot struct {
		index int
		score float64
	}

	best := make(map[string]slot, len(records))
	keep := make([]bool, len(records))

	for i := range records {
		key := records[i].MergeKey()
		score := Score(&records[i])
		prev, ok := best[key]
		if !ok || score > prev.score {
			if ok {
				keep[prev.index] = false
			}
			best[key] = slot{index: i, score: score}
			keep[i] = true
		}
	}

	out := make([]domain.EnrichedRecord, 0, len(best))
	for i := range records {
		if keep[i] {
			out = append(out, records[i])
		}
	}
	return out
}

// Score computes the completeness and source-quality score used to resolve
// conflicting candidates and to rank results by relevance. Higher is better.
func Score(r *domain.EnrichedRecord) float64 {
	var score float64

	if r.Title != "" {
		score += weightTitle
	}
	if len(r.Authors) > 0 {
		score += weightAuthors
	}
	if r.Abstract != "" {
		score += weightAbstract
	}
	if r.Year > 0 {
		score += weightYear
	}
	if r.Venue != "" {
		score += weightVenue
	}

	for _, present := range []bool{
		r.CanonicalTitle != "",
		len(r.CanonicalAuthors) > 0,
		r.CanonicalYear > 0,
		r.CanonicalVenue != "",
		r.CanonicalAbstract != "",
	} {
		if present {
			score += weightCanonical
		}
	}

	if r.PDFURL != "" || r.BestPDFURL != "" {
		score += weightPDF
	}
	if r.License != "" {
		score += weightLicense
	}
	if r.IsRedistributable {
		score += weightRedist
	}
	if r.CitationCount != nil {
		c := *r.CitationCount
		if c > citationCap {
			c = citationCap
		}
		if c > 0 {
			score += weightCitations * float64(c) / citationCap
		}
	}

	score += sourceQualityBonus(r.Source)
	return score
}

// sourceQualityBonus rewards records from higher-priority providers. The
// bonus decreases with the provider's rank in the global order.
func sourceQualityBonus(s domain.Source) float64 {
	return float64(len(domain.AllSources) - s.Priority())
}

// mergeGroup collapses one DOI group. members is never empty.
func (m *Merger) mergeGroup(members []domain.Record) domain.EnrichedRecord {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Source.Priority() < members[j].Source.Priority()
	})

	primary := toEnriched(members[0])
	pdfFromPublished := primary.PDFURL != "" && primary.OAStatus == domain.OAStatusPublished

	for _, member := range members[1:] {
		if primary.Title == "" {
			primary.Title = member.Title
		}
		if len(primary.Authors) == 0 {
			primary.Authors = member.Authors
		}
		if primary.Year == 0 {
			primary.Year = member.Year
		}
		if primary.Venue == "" {
			primary.Venue = member.Venue
		}
		if primary.Publisher == "" {
			primary.Publisher = member.Publisher
		}
		if primary.Abstract == "" {
			primary.Abstract = member.Abstract
		}
		if primary.LandingPage == "" {
			primary.LandingPage = member.LandingPage
		}
		if primary.CitationCount == nil {
			primary.CitationCount = member.CitationCount
		}
		primary.Topics = unionTopics(primary.Topics, member.Topics)

		// A publisher-hosted PDF replaces one found elsewhere.
		if member.BestPDFURL != "" {
			memberPublished := member.OAStatus == domain.OAStatusPublished
			if primary.PDFURL == "" || (memberPublished && !pdfFromPublished) {
				primary.PDFURL = member.BestPDFURL
				primary.PDFSource = member.Source
				pdfFromPublished = memberPublished
			}
		}

		primary.SourceMetadata = append(primary.SourceMetadata, domain.ProvenanceEntry{
			Source:   member.Source,
			Enriched: true,
		})
	}

	if primary.BestPDFURL == "" {
		primary.BestPDFURL = primary.PDFURL
	}
	return primary
}

// toEnriched lifts a raw record into the enriched form, seeding the canonical
// shadow fields and PDF provenance from the record itself.
func toEnriched(rec domain.Record) domain.EnrichedRecord {
	enriched := domain.EnrichedRecord{Record: rec}
	enriched.CanonicalTitle = rec.Title
	enriched.CanonicalAuthors = rec.Authors
	enriched.CanonicalYear = rec.Year
	enriched.CanonicalVenue = rec.Venue
	enriched.CanonicalAbstract = rec.Abstract
	if rec.BestPDFURL != "" {
		enriched.PDFURL = rec.BestPDFURL
		enriched.PDFSource = rec.Source
	}
	enriched.SourceMetadata = []domain.ProvenanceEntry{{Source: rec.Source}}
	return enriched
}

// unionTopics merges two topic lists preserving order and dropping
// duplicates case-insensitively.
func unionTopics(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, t := range lists {
			key := domain.NormalizeTitle(t)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
