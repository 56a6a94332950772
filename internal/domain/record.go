// Package domain provides domain models and business logic for the federated
// search service.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// Source identifies an external metadata provider.
type Source string

const (
	SourceCrossref        Source = "crossref"
	SourceOpenAlex        Source = "openalex"
	SourceUnpaywall       Source = "unpaywall"
	SourceEuropePMC       Source = "europepmc"
	SourceCORE            Source = "core"
	SourceOpenAIRE        Source = "openaire"
	SourceNCBI            Source = "ncbi"
	SourceOpenCitations   Source = "opencitations"
	SourceDataCite        Source = "datacite"
	SourceSemanticScholar Source = "semanticscholar"
	SourceArXiv           Source = "arxiv"
	SourceDOAJ            Source = "doaj"
)

// AllSources lists every known provider in priority order. The order is a
// total order used both to pick the primary record in a merge group and as a
// scoring bonus: earlier entries win conflicts.
var AllSources = []Source{
	SourceCrossref,
	SourceOpenAlex,
	SourceUnpaywall,
	SourceEuropePMC,
	SourceCORE,
	SourceOpenAIRE,
	SourceNCBI,
	SourceOpenCitations,
	SourceDataCite,
	SourceSemanticScholar,
	SourceArXiv,
	SourceDOAJ,
}

var sourcePriorities = func() map[Source]int {
	m := make(map[Source]int, len(AllSources))
	for i, s := range AllSources {
		m[s] = i
	}
	return m
}()

// Priority returns the rank of the source in the global priority order.
// Lower values are higher priority. Unknown sources rank last.
func (s Source) Priority() int {
	if p, ok := sourcePriorities[s]; ok {
		return p
	}
	return len(AllSources)
}

// IsKnown returns true if the source is one of the known providers.
func (s Source) IsKnown() bool {
	_, ok := sourcePriorities[s]
	return ok
}

// OAStatus represents the open-access lifecycle stage of a record.
type OAStatus string

const (
	OAStatusPreprint  OAStatus = "preprint"
	OAStatusAccepted  OAStatus = "accepted"
	OAStatusPublished OAStatus = "published"
	OAStatusOther     OAStatus = "other"
)

// Author represents a record author with optional affiliation and ORCID.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// Record is the canonical normalized representation of one paper from one
// provider. ID is always "source:sourceID" and is unique per source; it is
// never reused across merges.
type Record struct {
	ID            string    `json:"id"`
	DOI           string    `json:"doi,omitempty"`
	Title         string    `json:"title"`
	Authors       []Author  `json:"authors"`
	Year          int       `json:"year,omitempty"`
	Venue         string    `json:"venue,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	Abstract      string    `json:"abstract,omitempty"`
	Source        Source    `json:"source"`
	SourceID      string    `json:"sourceId"`
	OAStatus      OAStatus  `json:"oaStatus"`
	BestPDFURL    string    `json:"bestPdfUrl,omitempty"`
	LandingPage   string    `json:"landingPage,omitempty"`
	Topics        []string  `json:"topics,omitempty"`
	Language      string    `json:"language,omitempty"`
	CitationCount *int      `json:"citationCount,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RecordID builds the canonical record identifier for a source and its
// source-specific identifier.
func RecordID(source Source, sourceID string) string {
	return string(source) + ":" + sourceID
}

// ProvenanceEntry records which source contributed to an enriched record and
// how long its lookup took.
type ProvenanceEntry struct {
	Source   Source        `json:"source"`
	Latency  time.Duration `json:"latency"`
	Enriched bool          `json:"enriched"`
}

// EnrichedRecord is a Record augmented with canonical shadow fields,
// licensing, and PDF provenance gathered from higher-priority sources.
//
// Canonical fields are filled exactly once and never overwritten by
// lower-priority sources. Non-canonical fields are filled only when absent
// (first-writer-wins in priority order).
type EnrichedRecord struct {
	Record

	CanonicalTitle    string   `json:"canonicalTitle,omitempty"`
	CanonicalAuthors  []Author `json:"canonicalAuthors,omitempty"`
	CanonicalYear     int      `json:"canonicalYear,omitempty"`
	CanonicalVenue    string   `json:"canonicalVenue,omitempty"`
	CanonicalAbstract string   `json:"canonicalAbstract,omitempty"`

	License           string `json:"license,omitempty"`
	IsRedistributable bool   `json:"isRedistributable,omitempty"`

	PDFURL    string `json:"pdfUrl,omitempty"`
	PDFSource Source `json:"pdfSource,omitempty"`

	SourceMetadata []ProvenanceEntry `json:"sourceMetadata,omitempty"`
}

var doiPrefixRe = regexp.MustCompile(`^(https?://)?(dx\.)?doi\.org/`)

// NormalizeDOI lowercases a DOI and strips doi.org URL prefixes and the
// "doi:" scheme, so that equivalent identifiers from different providers
// compare equal. Returns "" for blank input.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	if doi == "" {
		return ""
	}
	doi = doiPrefixRe.ReplaceAllString(doi, "")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.TrimSpace(doi)
}

// NormalizeTitle lowercases a title and collapses runs of whitespace so that
// near-identical titles from different providers compare equal.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// MergeKey returns the deduplication key for a record: the normalized DOI if
// present, otherwise the normalized title combined with the source. Two
// records sharing a merge key always collapse to exactly one output record.
func (r *Record) MergeKey() string {
	if doi := NormalizeDOI(r.DOI); doi != "" {
		return "doi:" + doi
	}
	return "title:" + NormalizeTitle(r.Title) + "|" + string(r.Source)
}

// HasPDF returns true if any PDF location is known for the record.
func (r *Record) HasPDF() bool {
	return r.BestPDFURL != ""
}
