package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// DefaultErrorTTL is the lifetime of a cached upstream failure. It is shorter
// than the API-responses tier TTLs so a recovering provider is retried well
// before its successful payloads would have expired.
const DefaultErrorTTL = 30 * time.Second

// APICache caches raw provider responses keyed by source, endpoint, and
// parameters. Failures are cached too, with a shorter lifetime, so a failing
// upstream is not hammered on every request. Whether an expired failure
// permits a retry is controlled per source.
type APICache struct {
	manager  *Manager
	logger   zerolog.Logger
	errorTTL time.Duration

	// retryOnError maps a source to whether an expired error entry allows
	// the caller to retry the upstream. Sources absent from the map
	// default to retrying.
	retryOnError map[domain.Source]bool
}

type apiEntry struct {
	Payload  json.RawMessage `json:"payload,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`
	CachedAt time.Time       `json:"cachedAt"`
}

// APIResult is the outcome of an API cache lookup.
type APIResult struct {
	// Payload is the cached response body on a success hit.
	Payload []byte

	// ErrorMsg is the cached upstream failure on an error hit.
	ErrorMsg string
}

// NewAPICache creates an API-response cache. retryOnError may be nil;
// errorTTL of zero uses DefaultErrorTTL.
func NewAPICache(manager *Manager, retryOnError map[domain.Source]bool, errorTTL time.Duration, logger zerolog.Logger) *APICache {
	if errorTTL <= 0 {
		errorTTL = DefaultErrorTTL
	}
	return &APICache{
		manager:      manager,
		logger:       logger.With().Str("component", "api_cache").Logger(),
		errorTTL:     errorTTL,
		retryOnError: retryOnError,
	}
}

// Key builds the cache key for one upstream call.
func (c *APICache) Key(source domain.Source, endpoint string, params ...string) string {
	parts := append([]string{string(source), endpoint}, params...)
	return GenerateKey("api", parts...)
}

// Get returns the cached outcome for the call, or nil on miss. An error
// entry older than its lifetime counts as a miss when the source permits
// retries; otherwise the stale error keeps being served until the tier TTL
// removes it.
func (c *APICache) Get(ctx context.Context, source domain.Source, endpoint string, params ...string) *APIResult {
	key := c.Key(source, endpoint, params...)
	payload, err := c.manager.Get(ctx, key, StrategyAPIResponses)
	if err != nil {
		return nil
	}

	var entry apiEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		c.logger.Warn().Err(err).Msg("corrupt cached api entry")
		_ = c.manager.Delete(ctx, key)
		return nil
	}

	if entry.ErrorMsg != "" {
		expired := time.Since(entry.CachedAt) > c.errorTTL
		if expired && c.allowsRetry(source) {
			_ = c.manager.Delete(ctx, key)
			return nil
		}
		return &APIResult{ErrorMsg: entry.ErrorMsg}
	}
	return &APIResult{Payload: entry.Payload}
}

// Set caches a successful upstream response.
func (c *APICache) Set(ctx context.Context, source domain.Source, endpoint string, payload []byte, params ...string) {
	c.store(ctx, apiEntry{Payload: payload, CachedAt: time.Now()}, source, endpoint, params...)
}

// SetError caches an upstream failure.
func (c *APICache) SetError(ctx context.Context, source domain.Source, endpoint string, upstreamErr error, params ...string) {
	c.store(ctx, apiEntry{ErrorMsg: upstreamErr.Error(), CachedAt: time.Now()}, source, endpoint, params...)
}

// InvalidateAll drops every cached upstream response. Sources appear only
// inside hashed keys, so invalidation operates on the whole api namespace.
func (c *APICache) InvalidateAll(ctx context.Context) int {
	return c.manager.InvalidatePattern(ctx, "api:")
}

func (c *APICache) store(ctx context.Context, entry apiEntry, source domain.Source, endpoint string, params ...string) {
	payload, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal api entry")
		return
	}
	_ = c.manager.Set(ctx, c.Key(source, endpoint, params...), payload, StrategyAPIResponses)
}

func (c *APICache) allowsRetry(source domain.Source) bool {
	if c.retryOnError == nil {
		return true
	}
	allow, ok := c.retryOnError[source]
	if !ok {
		return true
	}
	return allow
}
