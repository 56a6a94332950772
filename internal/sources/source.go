// Package sources provides connectors for external scholarly metadata
// providers and the aggregation layer that fans out across them.
//
// Each provider implements the Connector interface behind a normalizer
// gateway that returns canonical records, allowing the search pipeline to
// query many heterogeneous sources concurrently with a unified API.
//
// Example usage:
//
//	conn := sources.NewRESTConnector(domain.SourceCrossref, cfg, client)
//	records, err := conn.Search(ctx, domain.SearchCriteria{DOI: "10.1/abc"})
package sources

import (
	"context"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Connector defines the interface that all metadata provider clients must
// implement.
type Connector interface {
	// Search queries the provider for records matching the given criteria.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting as needed
	//   - Return canonical domain.Record values
	//   - Wrap failures in domain.ProviderError with the source tag
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error)

	// Source returns the provider identity for this connector. Used for
	// attribution, deduplication, and routing.
	Source() domain.Source

	// Enabled returns whether this provider is currently enabled and
	// available for searches. A provider may be disabled due to
	// configuration or missing API keys.
	Enabled() bool
}

// Counter is implemented by connectors that can cheaply report an estimated
// total hit count for a query without fetching the full result set.
type Counter interface {
	Count(ctx context.Context, criteria domain.SearchCriteria) (int, error)
}
