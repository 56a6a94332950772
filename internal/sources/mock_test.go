package sources

import (
	"context"
	"sync/atomic"

	"github.com/helixir/federated-search-service/internal/domain"
)

// mockConnector is a mock implementation of Connector for testing.
type mockConnector struct {
	source  domain.Source
	enabled bool

	// searchFunc allows customizing search behavior in tests
	searchFunc func(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error)

	// Track calls for verification
	searchCalls atomic.Int32
}

func newMockConnector(source domain.Source, enabled bool) *mockConnector {
	return &mockConnector{
		source:  source,
		enabled: enabled,
	}
}

func (m *mockConnector) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
	m.searchCalls.Add(1)
	if m.searchFunc != nil {
		return m.searchFunc(ctx, criteria)
	}
	return []domain.Record{}, nil
}

func (m *mockConnector) Source() domain.Source {
	return m.source
}

func (m *mockConnector) Enabled() bool {
	return m.enabled
}

func (m *mockConnector) SearchCallCount() int {
	return int(m.searchCalls.Load())
}

// testRecord builds a minimal record for the given source and title.
func testRecord(source domain.Source, sourceID, title string) domain.Record {
	return domain.Record{
		ID:       domain.RecordID(source, sourceID),
		Title:    title,
		Source:   source,
		SourceID: sourceID,
		OAStatus: domain.OAStatusOther,
	}
}
