package cache

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// PaperCache stores enriched records under three keys at once, so a record
// can be retrieved by its id, its DOI, or its normalized title.
type PaperCache struct {
	manager *Manager
	logger  zerolog.Logger
}

// NewPaperCache creates a paper-details cache over the tiered manager.
func NewPaperCache(manager *Manager, logger zerolog.Logger) *PaperCache {
	return &PaperCache{
		manager: manager,
		logger:  logger.With().Str("component", "paper_cache").Logger(),
	}
}

// Set indexes the record by id, DOI, and normalized title. Records lacking a
// DOI or title are simply indexed by the keys they do have.
func (c *PaperCache) Set(ctx context.Context, rec *domain.EnrichedRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error().Err(err).Str("record_id", rec.ID).Msg("marshal record")
		return
	}
	for _, key := range c.keysFor(rec) {
		_ = c.manager.Set(ctx, key, payload, StrategyPaperDetails)
	}
}

// GetByID returns the cached record with the given canonical id, or nil.
func (c *PaperCache) GetByID(ctx context.Context, id string) *domain.EnrichedRecord {
	return c.get(ctx, GenerateKey("paper", "id", id))
}

// GetByDOI returns the cached record with the given DOI, or nil. The DOI is
// normalized before lookup.
func (c *PaperCache) GetByDOI(ctx context.Context, doi string) *domain.EnrichedRecord {
	norm := domain.NormalizeDOI(doi)
	if norm == "" {
		return nil
	}
	return c.get(ctx, GenerateKey("paper", "doi", norm))
}

// GetByTitle returns the cached record with the given title, or nil. The
// title is normalized before lookup.
func (c *PaperCache) GetByTitle(ctx context.Context, title string) *domain.EnrichedRecord {
	norm := domain.NormalizeTitle(title)
	if norm == "" {
		return nil
	}
	return c.get(ctx, GenerateKey("paper", "title", norm))
}

// Invalidate removes the record from all three indexes.
func (c *PaperCache) Invalidate(ctx context.Context, rec *domain.EnrichedRecord) {
	for _, key := range c.keysFor(rec) {
		_ = c.manager.Delete(ctx, key)
	}
}

// InvalidateAll drops every cached paper.
func (c *PaperCache) InvalidateAll(ctx context.Context) int {
	return c.manager.InvalidatePattern(ctx, "paper:")
}

func (c *PaperCache) keysFor(rec *domain.EnrichedRecord) []string {
	keys := make([]string, 0, 3)
	if rec.ID != "" {
		keys = append(keys, GenerateKey("paper", "id", rec.ID))
	}
	if doi := domain.NormalizeDOI(rec.DOI); doi != "" {
		keys = append(keys, GenerateKey("paper", "doi", doi))
	}
	if title := domain.NormalizeTitle(rec.Title); title != "" {
		keys = append(keys, GenerateKey("paper", "title", title))
	}
	return keys
}

func (c *PaperCache) get(ctx context.Context, key string) *domain.EnrichedRecord {
	payload, err := c.manager.Get(ctx, key, StrategyPaperDetails)
	if err != nil {
		return nil
	}
	var rec domain.EnrichedRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		c.logger.Warn().Err(err).Msg("corrupt cached record")
		_ = c.manager.Delete(ctx, key)
		return nil
	}
	return &rec
}
