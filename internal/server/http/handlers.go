package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/federated-search-service/internal/domain"
)

// searchHandler runs a federated search from query parameters.
//
//	GET /api/v1/search?q=...&page=1&pageSize=20&sort=citations&year_from=2020
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := s.pipeline.Search(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// paperHandler resolves a single work by DOI. The DOI occupies the path tail
// because identifiers contain slashes.
//
//	GET /api/v1/papers/10.1234/abc.123
func (s *Server) paperHandler(w http.ResponseWriter, r *http.Request) {
	doi := chi.URLParam(r, "*")
	if doi == "" {
		writeError(w, http.StatusBadRequest, "doi is required")
		return
	}

	rec, err := s.pipeline.LookupDOI(r.Context(), doi)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// sourcesHandler reports the configured providers and aggregator roster.
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	enabled := s.registry.Enabled()
	names := make([]string, len(enabled))
	for i, conn := range enabled {
		names[i] = string(conn.Source())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":     names,
		"aggregators": s.aggregator.Stats(),
	})
}

// sourcePerformanceHandler reports live performance trends and tuning
// recommendations.
func (s *Server) sourcePerformanceHandler(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeError(w, http.StatusNotFound, "performance monitoring disabled")
		return
	}

	windowDays := 7
	if v := r.URL.Query().Get("window_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trends":          s.monitor.PerformanceTrends(windowDays),
		"recommendations": s.monitor.OptimizationRecommendations(),
	})
}

// cacheStatsHandler reports cache tier hit rates and sizes.
func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "caching disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Metrics())
}

// cacheInvalidateHandler drops cached entries matching a pattern, or the
// whole cache when no pattern is given.
//
//	POST /api/v1/cache/invalidate?pattern=search:
func (s *Server) cacheInvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "caching disabled")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		s.cache.Clear(r.Context())
	} else {
		s.cache.InvalidatePattern(r.Context(), pattern)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "pattern": pattern})
}

// warmHandler triggers one warming cycle. A cycle already in flight is
// reported as a conflict rather than queued.
func (s *Server) warmHandler(w http.ResponseWriter, r *http.Request) {
	if s.warmer == nil {
		writeError(w, http.StatusNotFound, "cache warming disabled")
		return
	}

	if !s.warmer.StartWarming(r.Context()) {
		writeError(w, http.StatusConflict, "warming already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "warming_completed"})
}

// parseSearchRequest builds a SearchRequest from URL query parameters.
func parseSearchRequest(r *http.Request) (domain.SearchRequest, error) {
	q := r.URL.Query()

	req := domain.SearchRequest{
		Query: strings.TrimSpace(q.Get("q")),
		DOI:   strings.TrimSpace(q.Get("doi")),
		Sort:  domain.SortOrder(q.Get("sort")),
	}

	var err error
	if req.Page, err = intParam(q.Get("page")); err != nil {
		return req, &domain.ValidationError{Field: "page", Message: "must be an integer"}
	}
	if req.PageSize, err = intParam(q.Get("pageSize")); err != nil {
		return req, &domain.ValidationError{Field: "pageSize", Message: "must be an integer"}
	}
	if req.Filters.YearFrom, err = intParam(q.Get("year_from")); err != nil {
		return req, &domain.ValidationError{Field: "year_from", Message: "must be an integer"}
	}
	if req.Filters.YearTo, err = intParam(q.Get("year_to")); err != nil {
		return req, &domain.ValidationError{Field: "year_to", Message: "must be an integer"}
	}

	for _, v := range listParam(q.Get("sources")) {
		req.Filters.Sources = append(req.Filters.Sources, domain.Source(v))
	}
	for _, v := range listParam(q.Get("oa_status")) {
		req.Filters.OAStatuses = append(req.Filters.OAStatuses, domain.OAStatus(v))
	}
	req.Filters.Venues = listParam(q.Get("venues"))
	req.Filters.Publishers = listParam(q.Get("publishers"))
	req.Filters.Topics = listParam(q.Get("topics"))
	req.Filters.PublicationType = q.Get("publication_type")
	req.Filters.RequireOAPDF = q.Get("require_pdf") == "true"

	return req, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func listParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
