// Package pipeline orchestrates a federated search end to end: query
// classification, staged DOI resolution or keyword discovery plus
// aggregation, bounded-concurrency enrichment, merging, filtering, sorting,
// pagination, and facet generation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/federated-search-service/internal/cache"
	"github.com/helixir/federated-search-service/internal/config"
	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/fallback"
	"github.com/helixir/federated-search-service/internal/merge"
	"github.com/helixir/federated-search-service/internal/observability"
	"github.com/helixir/federated-search-service/internal/selection"
	"github.com/helixir/federated-search-service/internal/sources"
)

// doiRequestRe recognizes DOI-shaped queries: doi.org URLs, the doi: scheme,
// and bare 10.xxxx identifiers.
var doiRequestRe = regexp.MustCompile(`^(https?://)?(dx\.)?doi\.org/|^doi:|^10\.`)

// doiIdentifierRe matches a normalized DOI: registrant prefix, slash, suffix.
var doiIdentifierRe = regexp.MustCompile(`^10\.\S+/\S+`)

// Stage names used in pipeline errors and staged fallback execution.
const (
	stageMerge     = "merge"
	stageFastDOI   = "fast"
	stageMediumDOI = "medium"
)

// Options carries the pipeline's collaborators. SearchCache, PaperCache, and
// Warmer are optional; the rest are required.
type Options struct {
	Registry    *sources.Registry
	Aggregator  *sources.AggregatorManager
	Fallback    *fallback.Manager
	Merger      *merge.Merger
	Selector    *selection.Selector
	SearchCache *cache.SearchCache
	PaperCache  *cache.PaperCache
	APICache    *cache.APICache
	Warmer      *cache.Warmer
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
}

// Pipeline is the root search orchestrator.
type Pipeline struct {
	cfg config.PipelineConfig
	Options
	logger zerolog.Logger
}

// New creates a search pipeline.
func New(cfg config.PipelineConfig, opts Options) *Pipeline {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.DiscoveryLimit <= 0 {
		cfg.DiscoveryLimit = 100
	}
	if cfg.EnrichmentBatchSize <= 0 {
		cfg.EnrichmentBatchSize = 8
	}
	return &Pipeline{
		cfg:     cfg,
		Options: opts,
		logger:  opts.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Search runs one federated search. Individual provider failures contribute
// zero records and never abort the call; only unexpected orchestration
// failures surface as a PipelineError.
func (p *Pipeline) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	start := time.Now()

	req, kind, err := p.normalize(req)
	if err != nil {
		return nil, err
	}

	if cached := p.fromCache(ctx, req); cached != nil {
		p.recordUsage(req, kind)
		return cached, nil
	}

	criteria := toCriteria(req, p.cfg.DiscoveryLimit)

	// Count estimation runs concurrently with retrieval and is awaited at
	// the total-resolution step. Failures contribute zero.
	estimateCh := p.startCountEstimate(ctx, criteria)

	var merged []domain.EnrichedRecord
	if kind == "doi" {
		merged, err = p.searchByDOI(ctx, criteria)
	} else {
		merged, err = p.searchByKeyword(ctx, req, criteria)
	}
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordSearchFailed(kind, time.Since(start).Seconds())
		}
		return nil, err
	}

	fetched := len(merged)
	filtered := applyFilters(merged, req.Filters)
	sorted := sortRecords(filtered, req.Sort)
	page := paginate(sorted, req.Page, req.PageSize)

	total := p.resolveTotal(ctx, estimateCh, len(filtered), req.Filters)
	facets := generateFacets(filtered, total)

	resp := &domain.SearchResponse{
		Hits:     page,
		Facets:   facets,
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    total,
	}

	p.toCache(ctx, req, resp)
	p.recordUsage(req, kind)

	elapsed := time.Since(start)
	p.logger.Info().
		Str("kind", kind).
		Int("fetched", fetched).
		Int("filtered", len(filtered)).
		Int("returned", len(page)).
		Int("total", total).
		Dur("duration", elapsed).
		Msg("search completed")
	if p.Metrics != nil {
		p.Metrics.RecordSearch(kind, elapsed.Seconds(), len(page))
		if fetched > len(filtered) {
			p.Metrics.RecordsMerged.Add(float64(fetched - len(filtered)))
		}
	}
	return resp, nil
}

// LookupDOI resolves one work by DOI through the staged fallback path,
// consulting and filling the paper cache.
func (p *Pipeline) LookupDOI(ctx context.Context, doi string) (*domain.EnrichedRecord, error) {
	norm := domain.NormalizeDOI(doi)
	if !doiIdentifierRe.MatchString(norm) {
		return nil, &domain.ValidationError{Field: "doi", Message: "not a valid DOI"}
	}

	if p.PaperCache != nil {
		if rec := p.PaperCache.GetByDOI(ctx, norm); rec != nil {
			p.recordAccess(rec)
			return rec, nil
		}
	}

	merged, err := p.searchByDOI(ctx, domain.SearchCriteria{DOI: norm})
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, domain.ErrNotFound
	}

	rec := &merged[0]
	if p.PaperCache != nil {
		p.PaperCache.Set(ctx, rec)
	}
	p.recordAccess(rec)
	return rec, nil
}

// normalize fills pagination defaults and classifies the request as a DOI or
// keyword search.
func (p *Pipeline) normalize(req domain.SearchRequest) (domain.SearchRequest, string, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.DOI = strings.TrimSpace(req.DOI)

	if req.Query == "" && req.DOI == "" {
		return req, "", &domain.ValidationError{Field: "q", Message: "either q or doi is required"}
	}
	if req.DOI == "" && doiRequestRe.MatchString(req.Query) {
		req.DOI = req.Query
		req.Query = ""
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = p.cfg.DefaultPageSize
	}
	if req.PageSize > p.cfg.MaxPageSize {
		req.PageSize = p.cfg.MaxPageSize
	}

	kind := "keyword"
	if req.DOI != "" {
		kind = "doi"
	}
	return req, kind, nil
}

// searchByDOI resolves a DOI through staged fallback: the fast resolvers
// first, the broader index only when they come up empty.
func (p *Pipeline) searchByDOI(ctx context.Context, criteria domain.SearchCriteria) ([]domain.EnrichedRecord, error) {
	stages := []fallback.Stage{
		{Name: stageFastDOI, Operations: p.doiOps(criteria, domain.SourceCrossref, domain.SourceUnpaywall)},
		{Name: stageMediumDOI, Operations: p.doiOps(criteria, domain.SourceOpenAlex)},
	}

	results := p.Fallback.ExecuteInStages(ctx, stages, fallback.StageOptions{
		MaxResults: 1,
		Options: fallback.Options{
			RetryAttempts: p.cfg.RetryAttempts,
			RetryDelay:    p.cfg.RetryDelay,
		},
	})

	var pool []domain.Record
	for _, result := range results {
		p.reportOutcome(result)
		if result.Success {
			pool = append(pool, result.Records...)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	merged, err := p.Merger.DeduplicateByDOI(pool)
	if err != nil {
		return nil, &domain.PipelineError{Stage: stageMerge, Cause: err}
	}
	return merged, nil
}

// searchByKeyword discovers candidates from the primary index, fans out to
// the aggregator roster, enriches discovered candidates in bounded batches,
// and merges everything.
func (p *Pipeline) searchByKeyword(ctx context.Context, req domain.SearchRequest, criteria domain.SearchCriteria) ([]domain.EnrichedRecord, error) {
	selected := p.Selector.SelectSources(req)

	var pool []domain.Record
	var poolMu sync.Mutex
	add := func(records []domain.Record) {
		poolMu.Lock()
		pool = append(pool, records...)
		poolMu.Unlock()
	}

	var wg sync.WaitGroup
	var discovered []domain.Record

	wg.Add(1)
	go func() {
		defer wg.Done()
		discovered = p.discover(ctx, selected, criteria)
		add(discovered)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, result := range p.Aggregator.SearchAggregators(ctx, criteria) {
			p.reportAggregate(result)
			if result.Err == nil {
				add(result.Records)
			}
		}
	}()

	wg.Wait()

	// Enrichment only targets the discovered candidates; aggregator output
	// already went through its own providers.
	add(p.enrich(ctx, discovered))

	if len(pool) == 0 {
		return nil, nil
	}
	merged, err := p.Merger.Deduplicate(pool)
	if err != nil {
		return nil, &domain.PipelineError{Stage: stageMerge, Cause: err}
	}
	return merged, nil
}

// discover queries the highest-ranked selected source for candidates. A
// provider failure logs and contributes nothing.
func (p *Pipeline) discover(ctx context.Context, selected selection.Selection, criteria domain.SearchCriteria) []domain.Record {
	conn := p.primaryConnector(selected)
	if conn == nil {
		p.logger.Warn().Msg("no discovery source available")
		return nil
	}

	start := time.Now()
	records, err := conn.Search(ctx, criteria)
	p.Selector.UpdateSourcePerformance(selection.Report{
		Source:        conn.Source(),
		Latency:       time.Since(start),
		Success:       err == nil,
		ResultQuality: resultQuality(records),
	})
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("source", string(conn.Source())).
			Msg("discovery failed")
		return nil
	}
	return records
}

// primaryConnector picks the first selected source with a registered,
// enabled connector, falling back to the broad bibliographic index.
func (p *Pipeline) primaryConnector(selected selection.Selection) sources.Connector {
	for _, source := range selected.Sources {
		if conn := p.Registry.Get(source); conn != nil && conn.Enabled() {
			return conn
		}
	}
	if conn := p.Registry.Get(domain.SourceOpenAlex); conn != nil && conn.Enabled() {
		return conn
	}
	return nil
}

// enrich resolves OA status and PDF locations for discovered candidates that
// carry a DOI, in bounded concurrent batches with a politeness delay between
// batches.
func (p *Pipeline) enrich(ctx context.Context, candidates []domain.Record) []domain.Record {
	resolver := p.Registry.Get(domain.SourceUnpaywall)
	if resolver == nil || !resolver.Enabled() {
		return nil
	}

	var dois []string
	for _, rec := range candidates {
		if doi := domain.NormalizeDOI(rec.DOI); doi != "" {
			dois = append(dois, doi)
		}
	}
	if len(dois) == 0 {
		return nil
	}

	var out []domain.Record
	var outMu sync.Mutex

	for batchStart := 0; batchStart < len(dois); batchStart += p.cfg.EnrichmentBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := batchStart + p.cfg.EnrichmentBatchSize
		if end > len(dois) {
			end = len(dois)
		}

		g, batchCtx := errgroup.WithContext(ctx)
		for _, doi := range dois[batchStart:end] {
			doi := doi
			g.Go(func() error {
				records, err := p.enrichOne(batchCtx, resolver, doi)
				if err != nil {
					// Enrichment is best effort.
					p.logger.Debug().Err(err).Str("doi", doi).Msg("enrichment lookup failed")
					return nil
				}
				outMu.Lock()
				out = append(out, records...)
				outMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(dois) && p.cfg.EnrichmentDelay > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(p.cfg.EnrichmentDelay):
			}
		}
	}
	return out
}

// enrichOne resolves one DOI through the OA resolver, consulting the
// API-response cache first. Failures are cached with the short error TTL so a
// struggling resolver is not hammered on every batch.
func (p *Pipeline) enrichOne(ctx context.Context, resolver sources.Connector, doi string) ([]domain.Record, error) {
	source := resolver.Source()

	if p.APICache != nil {
		if hit := p.APICache.Get(ctx, source, "search", doi); hit != nil {
			if hit.ErrorMsg != "" {
				return nil, errors.New(hit.ErrorMsg)
			}
			var records []domain.Record
			if err := json.Unmarshal(hit.Payload, &records); err == nil {
				return records, nil
			}
		}
	}

	records, err := resolver.Search(ctx, domain.SearchCriteria{DOI: doi})
	if p.APICache != nil {
		if err != nil {
			p.APICache.SetError(ctx, source, "search", err, doi)
		} else if payload, merr := json.Marshal(records); merr == nil {
			p.APICache.Set(ctx, source, "search", payload, doi)
		}
	}
	return records, err
}

// startCountEstimate launches the best-effort total estimation: every
// count-capable enabled connector is asked concurrently, failures count
// zero, and the sum lands on the returned channel.
func (p *Pipeline) startCountEstimate(ctx context.Context, criteria domain.SearchCriteria) <-chan int {
	ch := make(chan int, 1)
	go func() {
		defer close(ch)

		var sum sync.WaitGroup
		var mu sync.Mutex
		estimate := 0

		for _, conn := range p.Registry.Enabled() {
			counter, ok := conn.(sources.Counter)
			if !ok {
				continue
			}
			sum.Add(1)
			go func(c sources.Counter) {
				defer sum.Done()
				n, err := c.Count(ctx, criteria)
				if err != nil || n < 0 {
					return
				}
				mu.Lock()
				estimate += n
				mu.Unlock()
			}(counter)
		}
		sum.Wait()
		ch <- estimate
	}()
	return ch
}

// resolveTotal awaits the concurrent estimate and reconciles it with what was
// actually fetched. An active publication-type filter scales the estimate by
// a fixed proportion, since true per-filter counts cannot be recomputed
// cheaply.
func (p *Pipeline) resolveTotal(ctx context.Context, estimateCh <-chan int, filteredCount int, f domain.Filters) int {
	estimate := 0
	select {
	case <-ctx.Done():
	case v, ok := <-estimateCh:
		if ok {
			estimate = v
		}
	}

	if f.PublicationType != "" {
		if adj, ok := publicationTypeAdjustment[f.PublicationType]; ok {
			estimate = int(float64(estimate) * adj)
		}
	}
	if estimate < filteredCount {
		estimate = filteredCount
	}
	return estimate
}

// paginate slices one page out of the sorted result set.
func paginate(records []domain.EnrichedRecord, page, pageSize int) []domain.EnrichedRecord {
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []domain.EnrichedRecord{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

func (p *Pipeline) fromCache(ctx context.Context, req domain.SearchRequest) *domain.SearchResponse {
	if p.SearchCache == nil {
		return nil
	}
	if resp := p.SearchCache.Get(ctx, req); resp != nil {
		return resp
	}
	return p.SearchCache.GetSimilar(ctx, req)
}

func (p *Pipeline) toCache(ctx context.Context, req domain.SearchRequest, resp *domain.SearchResponse) {
	if p.SearchCache != nil {
		p.SearchCache.Set(ctx, req, resp)
	}
	if p.PaperCache != nil {
		for i := range resp.Hits {
			p.PaperCache.Set(ctx, &resp.Hits[i])
		}
	}
}

func (p *Pipeline) recordUsage(req domain.SearchRequest, kind string) {
	if p.Warmer != nil && kind == "keyword" {
		p.Warmer.RecordQueryUsage(req.Query)
	}
}

// recordAccess feeds warmer popularity tracking. Records are tracked by DOI
// so the warm cycle can refresh them through LookupDOI.
func (p *Pipeline) recordAccess(rec *domain.EnrichedRecord) {
	if p.Warmer == nil {
		return
	}
	if doi := domain.NormalizeDOI(rec.DOI); doi != "" {
		p.Warmer.RecordPaperAccess(doi)
	}
}

// reportOutcome feeds a fallback result into the live performance learner.
func (p *Pipeline) reportOutcome(result fallback.Result) {
	source := domain.Source(result.Name)
	if !source.IsKnown() {
		return
	}
	p.Selector.UpdateSourcePerformance(selection.Report{
		Source:        source,
		Latency:       result.Duration,
		Success:       result.Success,
		ResultQuality: resultQuality(result.Records),
	})
}

func (p *Pipeline) reportAggregate(result sources.AggregateResult) {
	p.Selector.UpdateSourcePerformance(selection.Report{
		Source:        result.Source,
		Latency:       result.Latency,
		Success:       result.Err == nil,
		ResultQuality: resultQuality(result.Records),
	})
}

// resultQuality grades a record batch by metadata completeness: the fraction
// of records carrying both a DOI and a title.
func resultQuality(records []domain.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	complete := 0
	for i := range records {
		if records[i].DOI != "" && records[i].Title != "" {
			complete++
		}
	}
	return float64(complete) / float64(len(records))
}

// doiOps builds fallback operations for the registered, enabled connectors
// among the given sources, prioritized by global source order.
func (p *Pipeline) doiOps(criteria domain.SearchCriteria, srcs ...domain.Source) []fallback.Operation {
	ops := make([]fallback.Operation, 0, len(srcs))
	for _, source := range srcs {
		conn := p.Registry.Get(source)
		if conn == nil || !conn.Enabled() {
			continue
		}
		ops = append(ops, fallback.Operation{
			Name:     string(source),
			Priority: source.Priority(),
			Run: func(ctx context.Context) ([]domain.Record, error) {
				return conn.Search(ctx, criteria)
			},
		})
	}
	return ops
}

// toCriteria projects the request onto the uniform connector query shape.
func toCriteria(req domain.SearchRequest, discoveryLimit int) domain.SearchCriteria {
	return domain.SearchCriteria{
		DOI:             req.DOI,
		TitleOrKeywords: req.Query,
		YearFrom:        req.Filters.YearFrom,
		YearTo:          req.Filters.YearTo,
		MaxResults:      discoveryLimit,
	}
}
