// Package selection decides which providers to query for a given search. It
// combines a pure query classifier, static per-source characteristic tables,
// and a live performance monitor that learns latency and success rates from
// observed traffic.
package selection

import (
	"regexp"
	"strings"
	"time"

	"github.com/helixir/federated-search-service/internal/domain"
)

// QueryType classifies what kind of lookup a query is.
type QueryType string

const (
	QueryTypeDOI      QueryType = "doi"
	QueryTypeTitle    QueryType = "title"
	QueryTypeAuthor   QueryType = "author"
	QueryTypeCitation QueryType = "citation"
	QueryTypeKeyword  QueryType = "keyword"
	QueryTypeMixed    QueryType = "mixed"
)

// Domain is the research field a query most likely belongs to.
type Domain string

const (
	DomainBiomedical      Domain = "biomedical"
	DomainComputerScience Domain = "computer_science"
	DomainPhysics         Domain = "physics"
	DomainChemistry       Domain = "chemistry"
	DomainMathematics     Domain = "mathematics"
	DomainGeneral         Domain = "general"
)

// classifiedDomains is the tie-break enumeration order for domain
// classification: on equal keyword counts the earlier domain wins.
var classifiedDomains = []Domain{
	DomainBiomedical,
	DomainComputerScience,
	DomainPhysics,
	DomainChemistry,
	DomainMathematics,
}

// Complexity grades how demanding a query is to satisfy.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// ResultVolume estimates how many hits a query should produce.
type ResultVolume string

const (
	VolumeSingle ResultVolume = "single"
	VolumeFew    ResultVolume = "few"
	VolumeMany   ResultVolume = "many"
)

// TimeSensitivity grades how much the caller cares about recent work.
type TimeSensitivity string

const (
	SensitivityLow    TimeSensitivity = "low"
	SensitivityMedium TimeSensitivity = "medium"
	SensitivityHigh   TimeSensitivity = "high"
)

// Analysis is the ephemeral classification of one query. It is recomputed on
// every call and never persisted.
type Analysis struct {
	Type            QueryType
	Domain          Domain
	Complexity      Complexity
	ExpectedResults ResultVolume
	TimeSensitivity TimeSensitivity
}

var (
	doiQueryRe    = regexp.MustCompile(`(?i)^(https?://)?(dx\.)?doi\.org/|^doi:|^10\.`)
	authorNameRe  = regexp.MustCompile(`^[A-Z][a-z]+(,?\s+[A-Z]\.?)+$|^[A-Z]\.\s*[A-Z][a-z]+$`)
	citationRe    = regexp.MustCompile(`(?i)\b(cited by|citations? of|references? to|citing)\b`)
	titleQuotedRe = regexp.MustCompile(`^".+"$`)
)

var keywordIndicators = []string{
	"review", "survey", "overview", "applications", "methods",
	"approaches", "techniques", "advances", "state of the art",
}

var complexityIndicators = []string{
	"compare", "comparison", "versus", " vs ", "relationship between",
	"effect of", "impact of", "interaction",
}

var booleanConnectors = []string{" and ", " or ", " not "}

var urgencyWords = []string{
	"latest", "recent", "new", "current", "emerging", "2024", "2025", "2026",
}

var domainKeywords = map[Domain][]string{
	DomainBiomedical: {
		"cancer", "tumor", "protein", "gene", "genome", "clinical",
		"patient", "disease", "drug", "therapy", "vaccine", "cell",
		"covid", "immune", "virus", "medicine", "medical",
	},
	DomainComputerScience: {
		"algorithm", "machine learning", "deep learning", "neural",
		"network", "software", "computing", "artificial intelligence",
		"data mining", "computer", "transformer", "language model",
	},
	DomainPhysics: {
		"quantum", "particle", "relativity", "photon", "plasma",
		"gravitational", "cosmology", "superconduct", "boson",
	},
	DomainChemistry: {
		"molecule", "molecular", "synthesis", "catalyst", "polymer",
		"compound", "reaction", "organic", "electrochemical",
	},
	DomainMathematics: {
		"theorem", "proof", "conjecture", "topology", "algebra",
		"manifold", "stochastic", "equation", "graph theory",
	},
}

// AnalyzeQuery classifies a search request. It is a pure function of its
// input and the static keyword tables.
func AnalyzeQuery(req domain.SearchRequest) Analysis {
	query := strings.TrimSpace(req.Query)
	if req.DOI != "" {
		query = req.DOI
	}
	lower := strings.ToLower(query)

	analysis := Analysis{
		Type:            classifyType(query, lower),
		Domain:          classifyDomain(lower),
		Complexity:      classifyComplexity(lower),
		TimeSensitivity: classifyTimeSensitivity(lower, req.Filters),
	}
	analysis.ExpectedResults = expectedResults(analysis.Type)
	return analysis
}

// classifyType applies the classification branches in fixed order; the first
// match wins.
func classifyType(query, lower string) QueryType {
	switch {
	case doiQueryRe.MatchString(query):
		return QueryTypeDOI
	case looksLikeTitle(query):
		return QueryTypeTitle
	case authorNameRe.MatchString(query):
		return QueryTypeAuthor
	case citationRe.MatchString(query):
		return QueryTypeCitation
	case containsAny(lower, keywordIndicators):
		return QueryTypeKeyword
	default:
		return QueryTypeMixed
	}
}

// looksLikeTitle matches quoted phrases and long capitalized phrases without
// search-style connectives.
func looksLikeTitle(query string) bool {
	if titleQuotedRe.MatchString(query) {
		return true
	}
	words := strings.Fields(query)
	if len(words) < 4 || len(words) > 25 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		if w[0] >= 'A' && w[0] <= 'Z' {
			capitalized++
		}
	}
	return float64(capitalized)/float64(len(words)) >= 0.6
}

func classifyDomain(lower string) Domain {
	best := DomainGeneral
	bestCount := 0
	for _, d := range classifiedDomains {
		count := 0
		for _, kw := range domainKeywords[d] {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}

func classifyComplexity(lower string) Complexity {
	if containsAny(lower, complexityIndicators) {
		return ComplexityComplex
	}
	if len(strings.Fields(lower)) > 10 {
		return ComplexityComplex
	}
	padded := " " + lower + " "
	for _, conn := range booleanConnectors {
		if strings.Contains(padded, conn) {
			return ComplexityComplex
		}
	}
	return ComplexitySimple
}

func classifyTimeSensitivity(lower string, filters domain.Filters) TimeSensitivity {
	if containsAny(lower, urgencyWords) {
		return SensitivityHigh
	}
	if filters.YearFrom >= time.Now().Year()-2 && filters.YearFrom > 0 {
		return SensitivityHigh
	}
	if filters.YearFrom > 0 || filters.YearTo > 0 {
		return SensitivityMedium
	}
	return SensitivityLow
}

func expectedResults(t QueryType) ResultVolume {
	switch t {
	case QueryTypeDOI:
		return VolumeSingle
	case QueryTypeTitle, QueryTypeAuthor:
		return VolumeFew
	default:
		return VolumeMany
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
