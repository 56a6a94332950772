package selection

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Composite score weights and bounds.
const (
	weightSuccess = 0.4
	weightQuality = 0.3
	weightLatency = 0.3

	// latencyCeiling is the latency at which the latency term bottoms out.
	latencyCeiling = 3000 * time.Millisecond

	// decayFloor is the lowest value staleness decay can push a rate to.
	decayFloor = 0.1
)

// MonitorConfig tunes the live performance learner.
type MonitorConfig struct {
	// LearningRate is the EMA weight given to each new observation.
	LearningRate float64

	// DecayFactor multiplies the rates of sources untouched for the
	// staleness window.
	DecayFactor float64

	// StalenessWindow is how long a source's metrics stay fresh without
	// new observations.
	StalenessWindow time.Duration

	// HistoryLimit caps the retained report history.
	HistoryLimit int
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		c.LearningRate = 0.3
	}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		c.DecayFactor = 0.95
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 24 * time.Hour
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 1000
	}
	return c
}

// Report is one observation of a provider's behavior during a search.
type Report struct {
	Source        domain.Source
	Latency       time.Duration
	Success       bool
	ResultQuality float64
	Timestamp     time.Time
}

// SourceMetrics is the learned state for one provider.
type SourceMetrics struct {
	AverageLatency time.Duration `json:"averageLatency"`
	SuccessRate    float64       `json:"successRate"`
	ResultQuality  float64       `json:"resultQuality"`
	Observations   int           `json:"observations"`
	LastUpdated    time.Time     `json:"lastUpdated"`
}

// Trends summarizes a recent window of observations.
type Trends struct {
	WindowDays      int                       `json:"windowDays"`
	Reports         int                       `json:"reports"`
	AvgLatency      time.Duration             `json:"avgLatency"`
	AvgSuccessRate  float64                   `json:"avgSuccessRate"`
	TopSources      []domain.Source           `json:"topSources"`
	Underperformers []domain.Source           `json:"underperformers"`
	Scores          map[domain.Source]float64 `json:"scores"`
}

// Recommendation is one piece of tuning advice derived from trends.
type Recommendation struct {
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Monitor learns per-source latency, success rate, and result quality from
// observed traffic using an exponential moving average, and decays sources
// that stop being exercised. Safe for concurrent use.
type Monitor struct {
	cfg    MonitorConfig
	logger zerolog.Logger

	mu      sync.RWMutex
	metrics map[domain.Source]*SourceMetrics
	history []Report
}

// NewMonitor creates a performance monitor.
func NewMonitor(cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "performance_monitor").Logger(),
		metrics: make(map[domain.Source]*SourceMetrics),
	}
}

// RecordPerformance folds one observation into the source's EMA state,
// appends it to the capped history, and applies staleness decay to every
// other tracked source.
func (m *Monitor) RecordPerformance(report Report) {
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, report)
	if len(m.history) > m.cfg.HistoryLimit {
		m.history = m.history[len(m.history)-m.cfg.HistoryLimit:]
	}

	sm, ok := m.metrics[report.Source]
	if !ok {
		// First observation seeds the state directly.
		sm = &SourceMetrics{
			AverageLatency: report.Latency,
			SuccessRate:    boolToRate(report.Success),
			ResultQuality:  report.ResultQuality,
		}
		m.metrics[report.Source] = sm
	} else {
		alpha := m.cfg.LearningRate
		sm.AverageLatency = ema(sm.AverageLatency, report.Latency, alpha)
		sm.SuccessRate = alpha*boolToRate(report.Success) + (1-alpha)*sm.SuccessRate
		sm.ResultQuality = alpha*report.ResultQuality + (1-alpha)*sm.ResultQuality
	}
	sm.Observations++
	sm.LastUpdated = report.Timestamp

	m.decayStaleLocked(report.Timestamp)
}

// decayStaleLocked multiplies the rates of sources not updated within the
// staleness window, flooring at decayFloor. Caller holds the write lock.
func (m *Monitor) decayStaleLocked(now time.Time) {
	for source, sm := range m.metrics {
		if now.Sub(sm.LastUpdated) < m.cfg.StalenessWindow {
			continue
		}
		sm.SuccessRate = floorRate(sm.SuccessRate * m.cfg.DecayFactor)
		sm.ResultQuality = floorRate(sm.ResultQuality * m.cfg.DecayFactor)
		sm.LastUpdated = now
		m.logger.Debug().Str("source", string(source)).Msg("decayed stale source metrics")
	}
}

// Metrics returns a copy of the learned state for one source.
func (m *Monitor) Metrics(source domain.Source) (SourceMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.metrics[source]
	if !ok {
		return SourceMetrics{}, false
	}
	return *sm, true
}

// CompositeScore blends success rate, result quality, and latency into one
// comparable figure in [0,1]. Unknown sources score zero.
func (m *Monitor) CompositeScore(source domain.Source) (float64, bool) {
	sm, ok := m.Metrics(source)
	if !ok {
		return 0, false
	}
	return compositeScore(sm.SuccessRate, sm.ResultQuality, sm.AverageLatency), true
}

func compositeScore(success, quality float64, latency time.Duration) float64 {
	latencyTerm := float64(latency) / float64(latencyCeiling)
	if latencyTerm > 1 {
		latencyTerm = 1
	}
	return success*weightSuccess + quality*weightQuality + (1-latencyTerm)*weightLatency
}

// PerformanceTrends aggregates the report history over the window and ranks
// tracked sources: the top three by composite score and those scoring below
// 0.5.
func (m *Monitor) PerformanceTrends(windowDays int) Trends {
	if windowDays <= 0 {
		windowDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	m.mu.RLock()
	defer m.mu.RUnlock()

	trends := Trends{
		WindowDays: windowDays,
		Scores:     make(map[domain.Source]float64, len(m.metrics)),
	}

	var totalLatency time.Duration
	successes := 0
	for _, r := range m.history {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		trends.Reports++
		totalLatency += r.Latency
		if r.Success {
			successes++
		}
	}
	if trends.Reports > 0 {
		trends.AvgLatency = totalLatency / time.Duration(trends.Reports)
		trends.AvgSuccessRate = float64(successes) / float64(trends.Reports)
	}

	type scored struct {
		source domain.Source
		score  float64
	}
	ranked := make([]scored, 0, len(m.metrics))
	for source, sm := range m.metrics {
		score := compositeScore(sm.SuccessRate, sm.ResultQuality, sm.AverageLatency)
		trends.Scores[source] = score
		ranked = append(ranked, scored{source: source, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].source < ranked[j].source
	})

	for i, s := range ranked {
		if i < 3 {
			trends.TopSources = append(trends.TopSources, s.source)
		}
		if s.score < 0.5 {
			trends.Underperformers = append(trends.Underperformers, s.source)
		}
	}
	return trends
}

// OptimizationRecommendations turns trend thresholds into textual advice.
func (m *Monitor) OptimizationRecommendations() []Recommendation {
	trends := m.PerformanceTrends(7)

	m.mu.RLock()
	distinct := len(m.metrics)
	m.mu.RUnlock()

	var recs []Recommendation
	if trends.Reports > 0 && trends.AvgSuccessRate < 0.8 {
		recs = append(recs, Recommendation{
			Message:  "overall success rate below 80%; review failing providers and their timeouts",
			Priority: "high",
		})
	}
	if trends.AvgLatency > 5*time.Second {
		recs = append(recs, Recommendation{
			Message:  "average provider latency above 5s; consider tightening per-source timeouts or trimming slow aggregators",
			Priority: "medium",
		})
	}
	if distinct > 0 && distinct < 3 {
		recs = append(recs, Recommendation{
			Message:  "fewer than 3 distinct sources in use; coverage may suffer on domain-specific queries",
			Priority: "low",
		})
	}
	return recs
}

func ema(current, observation time.Duration, alpha float64) time.Duration {
	return time.Duration(alpha*float64(observation) + (1-alpha)*float64(current))
}

func boolToRate(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func floorRate(v float64) float64 {
	if v < decayFloor {
		return decayFloor
	}
	return v
}
