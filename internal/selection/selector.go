package selection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Suitability gates: a candidate must clear all of these to be selected.
const (
	minDomainCoverage = 0.3
	minQueryFitness   = 0.5
	minLiveSuccess    = 0.5
)

// Confidence components.
const (
	confidenceBase         = 0.5
	confidenceDomainBonus  = 0.2
	confidenceTypeBonus    = 0.1
	confidenceSuccessScale = 0.3
)

// Selection is the outcome of source selection for one query.
type Selection struct {
	Sources          []domain.Source `json:"sources"`
	Strategy         string          `json:"strategy"`
	EstimatedLatency time.Duration   `json:"estimatedLatency"`
	Reasoning        string          `json:"reasoning"`
	Confidence       float64         `json:"confidence"`
	Analysis         Analysis        `json:"-"`
}

// SelectorConfig tunes the smart selector.
type SelectorConfig struct {
	// AdaptiveLearning re-ranks strategy tiers with live performance data
	// before the greedy fill.
	AdaptiveLearning bool
}

// Selector picks providers for a query: classify, pick the base strategy,
// optionally re-rank its tiers with live metrics, then greedily fill the
// selection gated by suitability.
type Selector struct {
	cfg     SelectorConfig
	monitor *Monitor
	logger  zerolog.Logger
}

// NewSelector creates a smart source selector. monitor may be nil, which
// disables adaptive re-ranking and live gates.
func NewSelector(cfg SelectorConfig, monitor *Monitor, logger zerolog.Logger) *Selector {
	return &Selector{
		cfg:     cfg,
		monitor: monitor,
		logger:  logger.With().Str("component", "source_selector").Logger(),
	}
}

// SelectSources chooses the providers for a search request.
func (s *Selector) SelectSources(req domain.SearchRequest) Selection {
	analysis := AnalyzeQuery(req)
	strategy := StrategyFor(analysis)

	tiers := [][]domain.Source{strategy.Primary, strategy.Secondary, strategy.Fallback}
	if s.cfg.AdaptiveLearning && s.monitor != nil {
		for i := range tiers {
			tiers[i] = s.rerank(tiers[i], analysis)
		}
	}

	var selected []domain.Source
	for _, tier := range tiers {
		for _, source := range tier {
			if len(selected) >= strategy.MaxSources {
				break
			}
			if s.suitable(source, analysis) && !contains(selected, source) {
				selected = append(selected, source)
			}
		}
	}

	selection := Selection{
		Sources:          selected,
		Strategy:         strategy.Name,
		EstimatedLatency: s.estimateLatency(selected),
		Reasoning:        s.reasoning(analysis, strategy, selected),
		Confidence:       s.confidence(analysis, selected),
		Analysis:         analysis,
	}

	s.logger.Debug().
		Str("strategy", strategy.Name).
		Str("query_type", string(analysis.Type)).
		Str("domain", string(analysis.Domain)).
		Int("sources", len(selected)).
		Float64("confidence", selection.Confidence).
		Msg("selected sources")
	return selection
}

// UpdateSourcePerformance feeds one observed provider outcome back into the
// live learner.
func (s *Selector) UpdateSourcePerformance(report Report) {
	if s.monitor != nil {
		s.monitor.RecordPerformance(report)
	}
}

// suitable applies the static coverage and fitness gates, plus the live
// success-rate gate when the source has been observed.
func (s *Selector) suitable(source domain.Source, analysis Analysis) bool {
	profile := ProfileFor(source)
	if profile.Coverage[analysis.Domain] < minDomainCoverage {
		return false
	}
	if profile.Fitness[analysis.Type] < minQueryFitness {
		return false
	}
	if s.monitor != nil {
		if sm, ok := s.monitor.Metrics(source); ok && sm.SuccessRate < minLiveSuccess {
			return false
		}
	}
	return true
}

// rerank orders one tier by composite score, live metrics first, static
// profile figures for unobserved sources.
func (s *Selector) rerank(tier []domain.Source, analysis Analysis) []domain.Source {
	ranked := make([]domain.Source, len(tier))
	copy(ranked, tier)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.scoreFor(ranked[i], analysis) > s.scoreFor(ranked[j], analysis)
	})
	return ranked
}

func (s *Selector) scoreFor(source domain.Source, analysis Analysis) float64 {
	if s.monitor != nil {
		if score, ok := s.monitor.CompositeScore(source); ok {
			return score
		}
	}
	profile := ProfileFor(source)
	return compositeScore(profile.Reliability, profile.Coverage[analysis.Domain], profile.AverageLatency)
}

// estimateLatency assumes parallel fan-out: the estimate is the slowest
// selected source's average latency.
func (s *Selector) estimateLatency(selected []domain.Source) time.Duration {
	var max time.Duration
	for _, source := range selected {
		latency := ProfileFor(source).AverageLatency
		if s.monitor != nil {
			if sm, ok := s.monitor.Metrics(source); ok {
				latency = sm.AverageLatency
			}
		}
		if latency > max {
			max = latency
		}
	}
	return max
}

// confidence starts at the base, rewards specific classification, and scales
// with the average success rate of the selected sources, capped at 1.
func (s *Selector) confidence(analysis Analysis, selected []domain.Source) float64 {
	confidence := confidenceBase
	if analysis.Domain != DomainGeneral {
		confidence += confidenceDomainBonus
	}
	if analysis.Type != QueryTypeMixed {
		confidence += confidenceTypeBonus
	}
	if len(selected) > 0 {
		total := 0.0
		for _, source := range selected {
			rate := ProfileFor(source).Reliability
			if s.monitor != nil {
				if sm, ok := s.monitor.Metrics(source); ok {
					rate = sm.SuccessRate
				}
			}
			total += rate
		}
		confidence += confidenceSuccessScale * (total / float64(len(selected)))
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// reasoning assembles a human-readable explanation from the classification
// branches that fired.
func (s *Selector) reasoning(analysis Analysis, strategy SourceStrategy, selected []domain.Source) string {
	parts := []string{
		fmt.Sprintf("query classified as %s", analysis.Type),
	}
	if analysis.Domain != DomainGeneral {
		parts = append(parts, fmt.Sprintf("domain %s", analysis.Domain))
	}
	if analysis.TimeSensitivity == SensitivityHigh {
		parts = append(parts, "high time sensitivity")
	}
	parts = append(parts, fmt.Sprintf("strategy %s", strategy.Name))
	names := make([]string, len(selected))
	for i, src := range selected {
		names[i] = string(src)
	}
	parts = append(parts, fmt.Sprintf("selected [%s]", strings.Join(names, ", ")))
	return strings.Join(parts, "; ")
}

func contains(sources []domain.Source, source domain.Source) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}
