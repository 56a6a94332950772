package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/federated-search-service/internal/domain"
)

// RESTConnectorConfig configures a gateway-backed provider connector.
type RESTConnectorConfig struct {
	// BaseURL is the provider endpoint. Records come back already
	// normalized; provider-specific response parsing lives behind this
	// endpoint.
	BaseURL string

	// Enabled controls whether the connector participates in searches.
	Enabled bool

	// MaxResults caps the page size requested from the provider.
	MaxResults int
}

// RESTConnector queries one provider through the normalizer gateway.
// The gateway exposes GET {BaseURL}/{source}/search and responds with a
// JSON envelope of canonical records.
type RESTConnector struct {
	source domain.Source
	cfg    RESTConnectorConfig
	client *HTTPClient
}

// searchEnvelope is the gateway response shape.
type searchEnvelope struct {
	Records []domain.Record `json:"records"`
	Total   int             `json:"total"`
}

// NewRESTConnector creates a connector for the given provider.
func NewRESTConnector(source domain.Source, cfg RESTConnectorConfig, client *HTTPClient) *RESTConnector {
	return &RESTConnector{
		source: source,
		cfg:    cfg,
		client: client,
	}
}

// Search implements Connector. It never panics; all failures are returned as
// a domain.ProviderError tagged with the source.
func (c *RESTConnector) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Record, error) {
	endpoint, err := c.searchURL(criteria)
	if err != nil {
		return nil, domain.NewProviderError(c.source, 0, "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewProviderError(c.source, 0, "build request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(c.source, 0, "request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		// DOI lookups miss legitimately; an empty result is not an error.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProviderError(c.source, resp.StatusCode, "unexpected status", nil)
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, domain.NewProviderError(c.source, resp.StatusCode, "malformed payload", err)
	}

	records := envelope.Records
	now := time.Now()
	for i := range records {
		records[i].Source = c.source
		if records[i].SourceID == "" {
			records[i].SourceID = records[i].DOI
		}
		records[i].ID = domain.RecordID(c.source, records[i].SourceID)
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
	}
	return records, nil
}

// searchURL builds the gateway search URL for the given criteria.
func (c *RESTConnector) searchURL(criteria domain.SearchCriteria) (string, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	u, err := url.Parse(fmt.Sprintf("%s/%s/search", base, c.source))
	if err != nil {
		return "", err
	}

	q := u.Query()
	if criteria.DOI != "" {
		q.Set("doi", domain.NormalizeDOI(criteria.DOI))
	} else {
		q.Set("q", criteria.TitleOrKeywords)
	}
	if criteria.YearFrom > 0 {
		q.Set("year_from", strconv.Itoa(criteria.YearFrom))
	}
	if criteria.YearTo > 0 {
		q.Set("year_to", strconv.Itoa(criteria.YearTo))
	}

	limit := criteria.MaxResults
	if limit <= 0 || (c.cfg.MaxResults > 0 && limit > c.cfg.MaxResults) {
		limit = c.cfg.MaxResults
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if criteria.Offset > 0 {
		q.Set("offset", strconv.Itoa(criteria.Offset))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Count implements Counter: it asks the gateway for a single record and
// reads the envelope's total. Best effort; errors surface as ProviderError.
func (c *RESTConnector) Count(ctx context.Context, criteria domain.SearchCriteria) (int, error) {
	criteria.MaxResults = 1
	criteria.Offset = 0

	endpoint, err := c.searchURL(criteria)
	if err != nil {
		return 0, domain.NewProviderError(c.source, 0, "build request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, domain.NewProviderError(c.source, 0, "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, domain.NewProviderError(c.source, 0, "request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, domain.NewProviderError(c.source, resp.StatusCode, "unexpected status", nil)
	}

	var envelope searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, domain.NewProviderError(c.source, resp.StatusCode, "malformed payload", err)
	}
	return envelope.Total, nil
}

// Source implements Connector.
func (c *RESTConnector) Source() domain.Source {
	return c.source
}

// Enabled implements Connector.
func (c *RESTConnector) Enabled() bool {
	return c.cfg.Enabled
}
