package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/observability"
)

// DefaultAggregatorTimeout is the hard per-provider timeout when none is
// configured.
const DefaultAggregatorTimeout = 10 * time.Second

// AggregatorRoster is the fixed set of secondary providers queried on every
// keyword search, in priority order.
var AggregatorRoster = []domain.Source{
	domain.SourceCORE,
	domain.SourceOpenAIRE,
	domain.SourceEuropePMC,
	domain.SourceNCBI,
	domain.SourceOpenCitations,
	domain.SourceDataCite,
}

// AggregateResult holds the outcome of one provider's aggregate search.
// Records is never nil; a failed provider contributes an empty slice and a
// non-nil Err.
type AggregateResult struct {
	Source  domain.Source
	Records []domain.Record
	Err     error
	Latency time.Duration
}

// AggregatorStat describes the static configuration of one roster member.
// Reporting it performs no I/O.
type AggregatorStat struct {
	Source  domain.Source `json:"source"`
	Enabled bool          `json:"enabled"`
	Timeout time.Duration `json:"timeout"`
}

// AggregatorManager owns the roster of secondary providers and fans a search
// out across all of them concurrently, each under an independent hard
// timeout. SearchAggregators never fails as a whole: a provider that times
// out or errors contributes an empty result tagged with its error.
type AggregatorManager struct {
	registry *Registry
	timeout  time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewAggregatorManager creates an aggregator over the given registry.
// timeout is the per-provider hard timeout; zero uses DefaultAggregatorTimeout.
func NewAggregatorManager(registry *Registry, timeout time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *AggregatorManager {
	if timeout <= 0 {
		timeout = DefaultAggregatorTimeout
	}
	return &AggregatorManager{
		registry: registry,
		timeout:  timeout,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		metrics:  metrics,
	}
}

// SearchAggregators runs every enabled roster provider concurrently and
// collects one AggregateResult per provider, in roster order. The overall
// call never returns an error; per-provider failures are embedded in the
// results and logged with the source tag.
func (m *AggregatorManager) SearchAggregators(ctx context.Context, criteria domain.SearchCriteria) []AggregateResult {
	connectors := m.rosterConnectors()
	if len(connectors) == 0 {
		return nil
	}

	results := make([]AggregateResult, len(connectors))
	var wg sync.WaitGroup

	for i, conn := range connectors {
		wg.Add(1)
		go func(idx int, c Connector) {
			defer wg.Done()
			results[idx] = m.searchOne(ctx, c, criteria)
		}(i, conn)
	}

	wg.Wait()
	return results
}

// searchOne runs a single provider under the hard timeout, converting panics
// and timeouts into failure results.
func (m *AggregatorManager) searchOne(ctx context.Context, conn Connector, criteria domain.SearchCriteria) (result AggregateResult) {
	source := conn.Source()
	start := time.Now()

	result = AggregateResult{Source: source, Records: []domain.Record{}}

	defer func() {
		result.Latency = time.Since(start)
		if r := recover(); r != nil {
			result.Err = domain.NewProviderError(source, 0, fmt.Sprintf("panic: %v", r), nil)
			result.Records = []domain.Record{}
		}
		if result.Err != nil {
			m.logger.Warn().
				Err(result.Err).
				Str("source", string(source)).
				Dur("latency", result.Latency).
				Msg("aggregate search failed")
			if m.metrics != nil {
				if errors.Is(result.Err, domain.ErrTimeout) {
					m.metrics.RecordSourceTimeout(string(source))
				}
				m.metrics.RecordSourceRequestFailed(string(source), errorType(result.Err))
			}
		} else if m.metrics != nil {
			m.metrics.RecordSourceRequest(string(source), result.Latency.Seconds())
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	records, err := conn.Search(callCtx, criteria)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s after %s", domain.ErrTimeout, source, m.timeout)
		}
		result.Err = err
		return result
	}

	if records == nil {
		records = []domain.Record{}
	}
	result.Records = records
	return result
}

// Stats reports the static enablement and timeout of every roster provider.
// It performs no I/O and is safe to call at any time.
func (m *AggregatorManager) Stats() []AggregatorStat {
	stats := make([]AggregatorStat, 0, len(AggregatorRoster))
	for _, source := range AggregatorRoster {
		conn := m.registry.Get(source)
		stats = append(stats, AggregatorStat{
			Source:  source,
			Enabled: conn != nil && conn.Enabled(),
			Timeout: m.timeout,
		})
	}
	return stats
}

// rosterConnectors returns the enabled connectors for the roster, in roster
// order.
func (m *AggregatorManager) rosterConnectors() []Connector {
	connectors := make([]Connector, 0, len(AggregatorRoster))
	for _, source := range AggregatorRoster {
		if conn := m.registry.Get(source); conn != nil && conn.Enabled() {
			connectors = append(connectors, conn)
		}
	}
	return connectors
}

// errorType buckets an error for metric labels.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	default:
		return "provider_error"
	}
}
