package selection

import (
	"time"

	"github.com/helixir/federated-search-service/internal/domain"
)

// SourceProfile is the static characterization of one provider: what it is
// good at, how fast it tends to be, and how well it covers each research
// domain and query type. The tables are read-only.
type SourceProfile struct {
	Strengths      []string
	Weaknesses     []string
	AverageLatency time.Duration
	Reliability    float64
	Coverage       map[Domain]float64
	Fitness        map[QueryType]float64
}

// SourceStrategy is one tiered source-selection plan. Selection fills from
// Primary, then Secondary, then Fallback until MaxSources suitable providers
// are found.
type SourceStrategy struct {
	Name       string
	Primary    []domain.Source
	Secondary  []domain.Source
	Fallback   []domain.Source
	MaxSources int
	Timeout    time.Duration
}

var sourceProfiles = map[domain.Source]SourceProfile{
	domain.SourceCrossref: {
		Strengths:      []string{"doi resolution", "publisher metadata", "reference lists"},
		Weaknesses:     []string{"no full text", "sparse abstracts"},
		AverageLatency: 400 * time.Millisecond,
		Reliability:    0.98,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.9, DomainComputerScience: 0.85, DomainPhysics: 0.85,
			DomainChemistry: 0.9, DomainMathematics: 0.85, DomainGeneral: 0.95,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 1.0, QueryTypeTitle: 0.9, QueryTypeAuthor: 0.7,
			QueryTypeCitation: 0.8, QueryTypeKeyword: 0.6, QueryTypeMixed: 0.7,
		},
	},
	domain.SourceOpenAlex: {
		Strengths:      []string{"topic classification", "citation graph", "broad coverage"},
		Weaknesses:     []string{"metadata lag for very recent works"},
		AverageLatency: 600 * time.Millisecond,
		Reliability:    0.96,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.85, DomainComputerScience: 0.9, DomainPhysics: 0.85,
			DomainChemistry: 0.85, DomainMathematics: 0.8, DomainGeneral: 0.95,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.9, QueryTypeTitle: 0.85, QueryTypeAuthor: 0.9,
			QueryTypeCitation: 0.9, QueryTypeKeyword: 0.95, QueryTypeMixed: 0.9,
		},
	},
	domain.SourceUnpaywall: {
		Strengths:      []string{"oa status", "pdf locations"},
		Weaknesses:     []string{"doi lookups only"},
		AverageLatency: 350 * time.Millisecond,
		Reliability:    0.95,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.8, DomainComputerScience: 0.75, DomainPhysics: 0.75,
			DomainChemistry: 0.75, DomainMathematics: 0.7, DomainGeneral: 0.8,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 1.0, QueryTypeTitle: 0.2, QueryTypeAuthor: 0.1,
			QueryTypeCitation: 0.1, QueryTypeKeyword: 0.1, QueryTypeMixed: 0.2,
		},
	},
	domain.SourceEuropePMC: {
		Strengths:      []string{"life sciences", "full text", "preprints"},
		Weaknesses:     []string{"biomedical bias"},
		AverageLatency: 800 * time.Millisecond,
		Reliability:    0.93,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.95, DomainComputerScience: 0.2, DomainPhysics: 0.15,
			DomainChemistry: 0.5, DomainMathematics: 0.1, DomainGeneral: 0.5,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.8, QueryTypeTitle: 0.8, QueryTypeAuthor: 0.8,
			QueryTypeCitation: 0.6, QueryTypeKeyword: 0.85, QueryTypeMixed: 0.8,
		},
	},
	domain.SourceCORE: {
		Strengths:      []string{"repository aggregation", "full text"},
		Weaknesses:     []string{"noisy metadata", "slower responses"},
		AverageLatency: 1500 * time.Millisecond,
		Reliability:    0.85,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.6, DomainComputerScience: 0.7, DomainPhysics: 0.6,
			DomainChemistry: 0.6, DomainMathematics: 0.6, DomainGeneral: 0.75,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.5, QueryTypeTitle: 0.7, QueryTypeAuthor: 0.6,
			QueryTypeCitation: 0.3, QueryTypeKeyword: 0.8, QueryTypeMixed: 0.7,
		},
	},
	domain.SourceOpenAIRE: {
		Strengths:      []string{"european research output", "funding links"},
		Weaknesses:     []string{"regional bias"},
		AverageLatency: 1200 * time.Millisecond,
		Reliability:    0.88,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.6, DomainComputerScience: 0.6, DomainPhysics: 0.6,
			DomainChemistry: 0.6, DomainMathematics: 0.55, DomainGeneral: 0.7,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.6, QueryTypeTitle: 0.7, QueryTypeAuthor: 0.6,
			QueryTypeCitation: 0.3, QueryTypeKeyword: 0.75, QueryTypeMixed: 0.7,
		},
	},
	domain.SourceNCBI: {
		Strengths:      []string{"pubmed corpus", "mesh terms"},
		Weaknesses:     []string{"biomedical only", "strict rate limits"},
		AverageLatency: 900 * time.Millisecond,
		Reliability:    0.92,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.98, DomainComputerScience: 0.1, DomainPhysics: 0.05,
			DomainChemistry: 0.4, DomainMathematics: 0.05, DomainGeneral: 0.4,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.7, QueryTypeTitle: 0.8, QueryTypeAuthor: 0.85,
			QueryTypeCitation: 0.5, QueryTypeKeyword: 0.85, QueryTypeMixed: 0.8,
		},
	},
	domain.SourceOpenCitations: {
		Strengths:      []string{"citation counts", "citation graph"},
		Weaknesses:     []string{"metadata only via dois"},
		AverageLatency: 1000 * time.Millisecond,
		Reliability:    0.87,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.5, DomainComputerScience: 0.5, DomainPhysics: 0.5,
			DomainChemistry: 0.5, DomainMathematics: 0.5, DomainGeneral: 0.55,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.8, QueryTypeTitle: 0.3, QueryTypeAuthor: 0.2,
			QueryTypeCitation: 0.95, QueryTypeKeyword: 0.2, QueryTypeMixed: 0.3,
		},
	},
	domain.SourceDataCite: {
		Strengths:      []string{"datasets", "non-article dois"},
		Weaknesses:     []string{"few journal articles"},
		AverageLatency: 700 * time.Millisecond,
		Reliability:    0.9,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.4, DomainComputerScience: 0.45, DomainPhysics: 0.5,
			DomainChemistry: 0.45, DomainMathematics: 0.4, DomainGeneral: 0.5,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.85, QueryTypeTitle: 0.5, QueryTypeAuthor: 0.4,
			QueryTypeCitation: 0.2, QueryTypeKeyword: 0.5, QueryTypeMixed: 0.5,
		},
	},
	domain.SourceSemanticScholar: {
		Strengths:      []string{"influence metrics", "tldr summaries", "cs coverage"},
		Weaknesses:     []string{"aggressive rate limits"},
		AverageLatency: 800 * time.Millisecond,
		Reliability:    0.9,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.75, DomainComputerScience: 0.95, DomainPhysics: 0.6,
			DomainChemistry: 0.55, DomainMathematics: 0.6, DomainGeneral: 0.8,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.8, QueryTypeTitle: 0.85, QueryTypeAuthor: 0.85,
			QueryTypeCitation: 0.9, QueryTypeKeyword: 0.9, QueryTypeMixed: 0.85,
		},
	},
	domain.SourceArXiv: {
		Strengths:      []string{"preprints", "physics and cs", "fast updates"},
		Weaknesses:     []string{"no peer-review metadata", "no dois for older works"},
		AverageLatency: 600 * time.Millisecond,
		Reliability:    0.94,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.2, DomainComputerScience: 0.9, DomainPhysics: 0.95,
			DomainChemistry: 0.3, DomainMathematics: 0.9, DomainGeneral: 0.5,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.3, QueryTypeTitle: 0.8, QueryTypeAuthor: 0.8,
			QueryTypeCitation: 0.2, QueryTypeKeyword: 0.85, QueryTypeMixed: 0.8,
		},
	},
	domain.SourceDOAJ: {
		Strengths:      []string{"oa journals", "licensing metadata"},
		Weaknesses:     []string{"journal-level focus"},
		AverageLatency: 900 * time.Millisecond,
		Reliability:    0.89,
		Coverage: map[Domain]float64{
			DomainBiomedical: 0.5, DomainComputerScience: 0.45, DomainPhysics: 0.4,
			DomainChemistry: 0.45, DomainMathematics: 0.4, DomainGeneral: 0.6,
		},
		Fitness: map[QueryType]float64{
			QueryTypeDOI: 0.5, QueryTypeTitle: 0.6, QueryTypeAuthor: 0.5,
			QueryTypeCitation: 0.2, QueryTypeKeyword: 0.7, QueryTypeMixed: 0.6,
		},
	},
}

// ProfileFor returns the static profile for a source. The zero profile is
// returned for unknown sources.
func ProfileFor(source domain.Source) SourceProfile {
	return sourceProfiles[source]
}

var (
	doiStrategy = SourceStrategy{
		Name:       "doi",
		Primary:    []domain.Source{domain.SourceCrossref, domain.SourceOpenAlex},
		Secondary:  []domain.Source{domain.SourceUnpaywall, domain.SourceDataCite},
		Fallback:   []domain.Source{domain.SourceOpenCitations, domain.SourceSemanticScholar},
		MaxSources: 4,
		Timeout:    5 * time.Second,
	}

	fastStrategy = SourceStrategy{
		Name:       "fast",
		Primary:    []domain.Source{domain.SourceCrossref, domain.SourceArXiv, domain.SourceOpenAlex},
		Secondary:  []domain.Source{domain.SourceUnpaywall, domain.SourceSemanticScholar},
		Fallback:   []domain.Source{domain.SourceEuropePMC},
		MaxSources: 4,
		Timeout:    3 * time.Second,
	}

	generalStrategy = SourceStrategy{
		Name:       "general",
		Primary:    []domain.Source{domain.SourceOpenAlex, domain.SourceCrossref},
		Secondary:  []domain.Source{domain.SourceSemanticScholar, domain.SourceCORE, domain.SourceEuropePMC},
		Fallback:   []domain.Source{domain.SourceOpenAIRE, domain.SourceDOAJ},
		MaxSources: 5,
		Timeout:    8 * time.Second,
	}

	domainStrategies = map[Domain]SourceStrategy{
		DomainBiomedical: {
			Name:       "biomedical",
			Primary:    []domain.Source{domain.SourceEuropePMC, domain.SourceNCBI, domain.SourceOpenAlex},
			Secondary:  []domain.Source{domain.SourceCrossref, domain.SourceSemanticScholar},
			Fallback:   []domain.Source{domain.SourceCORE, domain.SourceDOAJ},
			MaxSources: 5,
			Timeout:    8 * time.Second,
		},
		DomainComputerScience: {
			Name:       "computer_science",
			Primary:    []domain.Source{domain.SourceOpenAlex, domain.SourceSemanticScholar, domain.SourceArXiv},
			Secondary:  []domain.Source{domain.SourceCrossref, domain.SourceCORE},
			Fallback:   []domain.Source{domain.SourceOpenAIRE},
			MaxSources: 5,
			Timeout:    8 * time.Second,
		},
		DomainPhysics: {
			Name:       "physics",
			Primary:    []domain.Source{domain.SourceArXiv, domain.SourceOpenAlex},
			Secondary:  []domain.Source{domain.SourceCrossref, domain.SourceSemanticScholar},
			Fallback:   []domain.Source{domain.SourceCORE, domain.SourceDataCite},
			MaxSources: 4,
			Timeout:    8 * time.Second,
		},
		DomainChemistry: {
			Name:       "chemistry",
			Primary:    []domain.Source{domain.SourceCrossref, domain.SourceOpenAlex},
			Secondary:  []domain.Source{domain.SourceEuropePMC, domain.SourceSemanticScholar},
			Fallback:   []domain.Source{domain.SourceCORE},
			MaxSources: 4,
			Timeout:    8 * time.Second,
		},
		DomainMathematics: {
			Name:       "mathematics",
			Primary:    []domain.Source{domain.SourceArXiv, domain.SourceOpenAlex},
			Secondary:  []domain.Source{domain.SourceCrossref},
			Fallback:   []domain.Source{domain.SourceCORE, domain.SourceSemanticScholar},
			MaxSources: 4,
			Timeout:    8 * time.Second,
		},
	}
)

// StrategyFor picks the base strategy for an analysis. Precedence: DOI
// lookups get the DOI strategy, highly time-sensitive queries get the fast
// strategy, then the domain strategies, then the general default.
func StrategyFor(analysis Analysis) SourceStrategy {
	if analysis.Type == QueryTypeDOI {
		return doiStrategy
	}
	if analysis.TimeSensitivity == SensitivityHigh {
		return fastStrategy
	}
	if s, ok := domainStrategies[analysis.Domain]; ok {
		return s
	}
	return generalStrategy
}
