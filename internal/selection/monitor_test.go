package selection

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func newTestMonitor(cfg MonitorConfig) *Monitor {
	return NewMonitor(cfg, zerolog.Nop())
}

func TestMonitor_RecordPerformance(t *testing.T) {
	t.Run("first observation seeds the state", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{})

		m.RecordPerformance(Report{
			Source:        domain.SourceCrossref,
			Latency:       400 * time.Millisecond,
			Success:       true,
			ResultQuality: 0.9,
		})

		sm, ok := m.Metrics(domain.SourceCrossref)
		require.True(t, ok)
		assert.Equal(t, 400*time.Millisecond, sm.AverageLatency)
		assert.Equal(t, 1.0, sm.SuccessRate)
		assert.Equal(t, 0.9, sm.ResultQuality)
		assert.Equal(t, 1, sm.Observations)
	})

	t.Run("subsequent observations blend with the learning rate", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{LearningRate: 0.5})

		m.RecordPerformance(Report{Source: domain.SourceCORE, Latency: 1000 * time.Millisecond, Success: true, ResultQuality: 1.0})
		m.RecordPerformance(Report{Source: domain.SourceCORE, Latency: 2000 * time.Millisecond, Success: false, ResultQuality: 0.0})

		sm, ok := m.Metrics(domain.SourceCORE)
		require.True(t, ok)
		assert.Equal(t, 1500*time.Millisecond, sm.AverageLatency)
		assert.InDelta(t, 0.5, sm.SuccessRate, 1e-9)
		assert.InDelta(t, 0.5, sm.ResultQuality, 1e-9)
	})

	t.Run("history is capped", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{HistoryLimit: 10})

		for i := 0; i < 25; i++ {
			m.RecordPerformance(Report{Source: domain.SourceOpenAlex, Success: true})
		}

		m.mu.RLock()
		defer m.mu.RUnlock()
		assert.Len(t, m.history, 10)
	})

	t.Run("stale sources decay toward the floor", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{StalenessWindow: time.Hour, DecayFactor: 0.5})

		past := time.Now().Add(-2 * time.Hour)
		m.RecordPerformance(Report{Source: domain.SourceNCBI, Success: true, ResultQuality: 0.8, Timestamp: past})

		// A fresh report for another source triggers the decay sweep.
		m.RecordPerformance(Report{Source: domain.SourceCrossref, Success: true})

		sm, ok := m.Metrics(domain.SourceNCBI)
		require.True(t, ok)
		assert.InDelta(t, 0.5, sm.SuccessRate, 1e-9)
		assert.InDelta(t, 0.4, sm.ResultQuality, 1e-9)
	})

	t.Run("decay never drops below the floor", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{StalenessWindow: time.Millisecond, DecayFactor: 0.05})

		m.RecordPerformance(Report{Source: domain.SourceDOAJ, Success: true, ResultQuality: 1.0, Timestamp: time.Now().Add(-time.Hour)})
		m.RecordPerformance(Report{Source: domain.SourceCrossref, Success: true})

		sm, _ := m.Metrics(domain.SourceDOAJ)
		assert.GreaterOrEqual(t, sm.SuccessRate, 0.1)
		assert.GreaterOrEqual(t, sm.ResultQuality, 0.1)
	})
}

func TestMonitor_CompositeScore(t *testing.T) {
	m := newTestMonitor(MonitorConfig{})

	t.Run("unknown source has no score", func(t *testing.T) {
		_, ok := m.CompositeScore(domain.SourceArXiv)
		assert.False(t, ok)
	})

	t.Run("fast reliable source scores near one", func(t *testing.T) {
		m.RecordPerformance(Report{Source: domain.SourceCrossref, Latency: 0, Success: true, ResultQuality: 1.0})
		score, ok := m.CompositeScore(domain.SourceCrossref)
		require.True(t, ok)
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("latency contribution bottoms out at the ceiling", func(t *testing.T) {
		m.RecordPerformance(Report{Source: domain.SourceCORE, Latency: time.Minute, Success: true, ResultQuality: 1.0})
		score, ok := m.CompositeScore(domain.SourceCORE)
		require.True(t, ok)
		// success*0.4 + quality*0.3 + 0*0.3
		assert.InDelta(t, 0.7, score, 1e-9)
	})
}

func TestMonitor_PerformanceTrends(t *testing.T) {
	m := newTestMonitor(MonitorConfig{})

	m.RecordPerformance(Report{Source: domain.SourceCrossref, Latency: 200 * time.Millisecond, Success: true, ResultQuality: 0.9})
	m.RecordPerformance(Report{Source: domain.SourceOpenAlex, Latency: 400 * time.Millisecond, Success: true, ResultQuality: 0.8})
	m.RecordPerformance(Report{Source: domain.SourceCORE, Latency: 2900 * time.Millisecond, Success: false, ResultQuality: 0.1})

	trends := m.PerformanceTrends(7)

	assert.Equal(t, 3, trends.Reports)
	assert.InDelta(t, 2.0/3.0, trends.AvgSuccessRate, 1e-9)
	assert.Len(t, trends.TopSources, 3)
	assert.Equal(t, domain.SourceCrossref, trends.TopSources[0])
	assert.Contains(t, trends.Underperformers, domain.SourceCORE)
	assert.NotContains(t, trends.Underperformers, domain.SourceCrossref)
}

func TestMonitor_OptimizationRecommendations(t *testing.T) {
	t.Run("low success and few sources produce advice", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{})

		for i := 0; i < 10; i++ {
			m.RecordPerformance(Report{Source: domain.SourceCORE, Latency: 6 * time.Second, Success: i%2 == 0})
		}

		recs := m.OptimizationRecommendations()
		require.NotEmpty(t, recs)

		priorities := make(map[string]bool)
		for _, r := range recs {
			priorities[r.Priority] = true
		}
		assert.True(t, priorities["high"], "sub-80%% success should be high priority")
		assert.True(t, priorities["medium"], "6s average latency should be flagged")
		assert.True(t, priorities["low"], "single-source usage should be flagged")
	})

	t.Run("healthy traffic produces no advice", func(t *testing.T) {
		m := newTestMonitor(MonitorConfig{})
		for _, src := range []domain.Source{domain.SourceCrossref, domain.SourceOpenAlex, domain.SourceEuropePMC} {
			m.RecordPerformance(Report{Source: src, Latency: 300 * time.Millisecond, Success: true, ResultQuality: 0.9})
		}
		assert.Empty(t, m.OptimizationRecommendations())
	})
}
