package domain

// SortOrder selects how search hits are ordered before pagination.
type SortOrder string

const (
	SortRelevance     SortOrder = "relevance"
	SortDate          SortOrder = "date"
	SortDateAsc       SortOrder = "date_asc"
	SortCitations     SortOrder = "citations"
	SortCitationsAsc  SortOrder = "citations_asc"
	SortAuthor        SortOrder = "author"
	SortAuthorDesc    SortOrder = "author_desc"
	SortVenue         SortOrder = "venue"
	SortVenueDesc     SortOrder = "venue_desc"
	SortTitle         SortOrder = "title"
	SortTitleDesc     SortOrder = "title_desc"
)

// Filters narrows a result set after aggregation and merging.
// Zero values mean "no constraint".
type Filters struct {
	// Sources restricts hits to the given providers.
	Sources []Source `json:"sources,omitempty"`

	// YearFrom and YearTo bound the publication year (inclusive).
	YearFrom int `json:"yearFrom,omitempty"`
	YearTo   int `json:"yearTo,omitempty"`

	// OAStatuses restricts hits to the given open-access stages.
	OAStatuses []OAStatus `json:"oaStatuses,omitempty"`

	// Venues, Publishers, and Topics are membership filters.
	Venues     []string `json:"venues,omitempty"`
	Publishers []string `json:"publishers,omitempty"`
	Topics     []string `json:"topics,omitempty"`

	// PublicationType maps to a source set (e.g. "preprint" selects the
	// preprint servers). Empty means all publication types.
	PublicationType string `json:"publicationType,omitempty"`

	// RequireOAPDF keeps only records that are open access and have a
	// resolvable PDF.
	RequireOAPDF bool `json:"requireOaPdf,omitempty"`
}

// IsZero returns true if no filter constraint is set.
func (f Filters) IsZero() bool {
	return len(f.Sources) == 0 &&
		f.YearFrom == 0 && f.YearTo == 0 &&
		len(f.OAStatuses) == 0 &&
		len(f.Venues) == 0 && len(f.Publishers) == 0 && len(f.Topics) == 0 &&
		f.PublicationType == "" &&
		!f.RequireOAPDF
}

// SearchRequest is one federated search call. Either Query or DOI must be
// set; a DOI-shaped Query is treated as a DOI lookup.
type SearchRequest struct {
	Query    string    `json:"q,omitempty" validate:"required_without=DOI,max=512"`
	DOI      string    `json:"doi,omitempty" validate:"required_without=Query,max=256"`
	Filters  Filters   `json:"filters,omitempty"`
	Page     int       `json:"page,omitempty" validate:"gte=0,lte=1000"`
	PageSize int       `json:"pageSize,omitempty" validate:"gte=0,lte=100"`
	Sort     SortOrder `json:"sort,omitempty"`
}

// FacetCounts maps a facet value (e.g. a source name or a year) to its
// approximate count across the full corpus.
type FacetCounts map[string]int

// SearchResponse is the result of a federated search: one page of merged
// hits plus corpus-scaled facets.
type SearchResponse struct {
	Hits     []EnrichedRecord       `json:"hits"`
	Facets   map[string]FacetCounts `json:"facets"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
	Total    int                    `json:"total"`
}

// SearchCriteria is the uniform query shape handed to source connectors.
type SearchCriteria struct {
	// DOI looks up a single work by identifier. When set, connectors
	// ignore TitleOrKeywords.
	DOI string

	// TitleOrKeywords is the free-text part of the query.
	TitleOrKeywords string

	// YearFrom and YearTo bound the publication year (inclusive, 0 = unset).
	YearFrom int
	YearTo   int

	// MaxResults caps the page size requested from the provider.
	// 0 uses the provider's default.
	MaxResults int

	// Offset is the starting position for paginated requests.
	Offset int
}
