package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/federated-search-service/internal/domain"
)

func newTestHTTPClient() *HTTPClient {
	return NewHTTPClient(HTTPClientConfig{
		Timeout:    2 * time.Second,
		RateLimit:  1000,
		BurstSize:  1000,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
}

func TestRESTConnector_Search(t *testing.T) {
	t.Run("keyword search builds query params and stamps records", func(t *testing.T) {
		var gotPath string
		var gotQuery map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = map[string]string{}
			for k := range r.URL.Query() {
				gotQuery[k] = r.URL.Query().Get(k)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(searchEnvelope{
				Records: []domain.Record{
					{Title: "Deep Learning", DOI: "10.1/abc", SourceID: "W100"},
					{Title: "No source id", DOI: "10.1/def"},
				},
				Total: 2,
			})
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceOpenAlex, RESTConnectorConfig{
			BaseURL:    server.URL,
			Enabled:    true,
			MaxResults: 50,
		}, newTestHTTPClient())

		records, err := conn.Search(context.Background(), domain.SearchCriteria{
			TitleOrKeywords: "deep learning",
			YearFrom:        2019,
			YearTo:          2024,
			MaxResults:      25,
			Offset:          10,
		})
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "/openalex/search", gotPath)
		assert.Equal(t, "deep learning", gotQuery["q"])
		assert.Equal(t, "2019", gotQuery["year_from"])
		assert.Equal(t, "2024", gotQuery["year_to"])
		assert.Equal(t, "25", gotQuery["limit"])
		assert.Equal(t, "10", gotQuery["offset"])
		assert.NotContains(t, gotQuery, "doi")

		assert.Equal(t, domain.SourceOpenAlex, records[0].Source)
		assert.Equal(t, "W100", records[0].SourceID)
		assert.Equal(t, domain.RecordID(domain.SourceOpenAlex, "W100"), records[0].ID)
		assert.False(t, records[0].UpdatedAt.IsZero())
		assert.False(t, records[0].CreatedAt.IsZero())

		// A record without a source id falls back to its DOI.
		assert.Equal(t, "10.1/def", records[1].SourceID)
		assert.Equal(t, domain.RecordID(domain.SourceOpenAlex, "10.1/def"), records[1].ID)
	})

	t.Run("doi search normalizes the identifier and omits q", func(t *testing.T) {
		var gotQuery map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = map[string]string{}
			for k := range r.URL.Query() {
				gotQuery[k] = r.URL.Query().Get(k)
			}
			json.NewEncoder(w).Encode(searchEnvelope{Records: []domain.Record{}})
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceCrossref, RESTConnectorConfig{
			BaseURL: server.URL,
			Enabled: true,
		}, newTestHTTPClient())

		_, err := conn.Search(context.Background(), domain.SearchCriteria{
			DOI: "https://doi.org/10.1234/ABC.123",
		})
		require.NoError(t, err)

		assert.Equal(t, "10.1234/abc.123", gotQuery["doi"])
		assert.NotContains(t, gotQuery, "q")
	})

	t.Run("limit is capped at the configured maximum", func(t *testing.T) {
		var gotLimit string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLimit = r.URL.Query().Get("limit")
			json.NewEncoder(w).Encode(searchEnvelope{Records: []domain.Record{}})
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceCrossref, RESTConnectorConfig{
			BaseURL:    server.URL,
			Enabled:    true,
			MaxResults: 20,
		}, newTestHTTPClient())

		_, err := conn.Search(context.Background(), domain.SearchCriteria{
			TitleOrKeywords: "graphene",
			MaxResults:      500,
		})
		require.NoError(t, err)
		assert.Equal(t, "20", gotLimit)
	})

	t.Run("404 means no results, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceUnpaywall, RESTConnectorConfig{
			BaseURL: server.URL,
			Enabled: true,
		}, newTestHTTPClient())

		records, err := conn.Search(context.Background(), domain.SearchCriteria{DOI: "10.1/missing"})
		assert.NoError(t, err)
		assert.Nil(t, records)
	})

	t.Run("non-200 status becomes a provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceCORE, RESTConnectorConfig{
			BaseURL: server.URL,
			Enabled: true,
		}, newTestHTTPClient())

		_, err := conn.Search(context.Background(), domain.SearchCriteria{TitleOrKeywords: "x"})
		require.Error(t, err)

		var provErr *domain.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, domain.SourceCORE, provErr.Source)
		assert.Equal(t, http.StatusForbidden, provErr.StatusCode)
	})

	t.Run("malformed payload becomes a provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceCORE, RESTConnectorConfig{
			BaseURL: server.URL,
			Enabled: true,
		}, newTestHTTPClient())

		_, err := conn.Search(context.Background(), domain.SearchCriteria{TitleOrKeywords: "x"})

		var provErr *domain.ProviderError
		require.ErrorAs(t, err, &provErr)
	})

	t.Run("retries on server errors before succeeding", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(searchEnvelope{
				Records: []domain.Record{{Title: "ok", SourceID: "1"}},
			})
		}))
		defer server.Close()

		conn := NewRESTConnector(domain.SourceEuropePMC, RESTConnectorConfig{
			BaseURL: server.URL,
			Enabled: true,
		}, newTestHTTPClient())

		records, err := conn.Search(context.Background(), domain.SearchCriteria{TitleOrKeywords: "x"})
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 2, attempts)
	})
}

func TestRESTConnector_Enabled(t *testing.T) {
	enabled := NewRESTConnector(domain.SourceCrossref, RESTConnectorConfig{Enabled: true}, newTestHTTPClient())
	disabled := NewRESTConnector(domain.SourceCrossref, RESTConnectorConfig{Enabled: false}, newTestHTTPClient())

	assert.True(t, enabled.Enabled())
	assert.False(t, disabled.Enabled())
	assert.Equal(t, domain.SourceCrossref, enabled.Source())
}
