package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jgivc/tracksearch/internal/adapter/browser"
	"github.com/jgivc/tracksearch/internal/adapter/parser"
	"github.com/jgivc/tracksearch/internal/adapter/profile"
	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/config"
	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/service/filter"
)

const (
	serviceName = "search"

	// Hard ceiling on page traversal regardless of caller input or the
	// site-reported total.
	HardMaxPages = 10
)

type SessionSource interface {
	Cookies() ([]entity.SessionCookie, error)
}

type ResultParser interface {
	ParseResults(src string) []entity.SearchResult
	TotalPages(src string) int
}

// PageCache is optional; a nil cache disables it. Cache errors degrade to
// misses, never to search failures.
type PageCache interface {
	GetPage(ctx context.Context, query string, page int) ([]entity.SearchResult, int, error)
	PutPage(ctx context.Context, query string, page int, results []entity.SearchResult, totalPages int) error
}

type Request struct {
	Query      string
	Filters    entity.SearchFilters
	Sort       entity.SearchSort
	Pagination entity.PaginationConfig
}

// SearchService runs progressive paginated searches: page one first to
// learn the total, then a bounded worker pool over the remaining pages,
// deduplicated by topic id in ascending page order. Single-flight: one
// search at a time.
type SearchService struct {
	running atomic.Bool

	gw      browser.Gateway
	prof    *profile.Profile
	parser  ResultParser
	session SessionSource
	cache   PageCache
	cfg     *config.SearchConfig
	log     *slog.Logger
}

func NewSearchService(gw browser.Gateway, prof *profile.Profile, p ResultParser, session SessionSource, cache PageCache, cfg *config.SearchConfig, log *slog.Logger) *SearchService {
	return &SearchService{
		gw:      gw,
		prof:    prof,
		parser:  p,
		session: session,
		cache:   cache,
		cfg:     cfg,
		log:     log.With(slog.String("service", serviceName)),
	}
}

type pageResult struct {
	page    int
	results []entity.SearchResult
	err     error
}

// Execute runs the search. Progress events go to the optional progress
// channel; the final event always carries IsComplete. Individual page
// failures reduce completeness, they never abort the search.
func (s *SearchService) Execute(ctx context.Context, req Request, progress chan<- entity.SearchProgress) (*entity.SearchResponse, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrSearchHasAlreadyStarted
	}
	defer s.running.Store(false)

	cookies, err := s.session.Cookies()
	if err != nil {
		return nil, err
	}

	searchID := uuid.NewString()
	log := s.log.With(slog.String("search_id", searchID), slog.String("query", req.Query))

	// Unset request pagination falls back to the configured defaults
	// before the hard cap applies.
	maxPages := req.Pagination.MaxPages
	if maxPages < 1 {
		maxPages = s.cfg.MaxPages
	}
	if maxPages < 1 || maxPages > HardMaxPages {
		maxPages = HardMaxPages
	}
	concurrency := req.Pagination.ConcurrentPages
	if concurrency < 1 {
		concurrency = s.cfg.ConcurrentPages
	}
	if concurrency < 1 {
		concurrency = 1
	}

	firstPage, err := s.gw.NewPageWithCookies(ctx, cookies)
	if err != nil {
		return nil, err
	}

	batches := make(map[int][]entity.SearchResult)

	pagesFailed := 0
	results, reportedTotal, err := s.fetchPage(ctx, firstPage, req.Query, 1)
	if err != nil {
		// Page one failing means no total to work with; the search
		// degrades to an empty, complete result.
		log.Error("Cannot fetch first page", slog.Any("error", err))
		reportedTotal = 1
		pagesFailed = 1
	} else {
		batches[1] = results
	}

	effectiveTotal := reportedTotal
	if effectiveTotal > maxPages {
		effectiveTotal = maxPages
	}
	if effectiveTotal < 1 {
		effectiveTotal = 1
	}

	log.Info("First page fetched",
		slog.Int("reported_total", reportedTotal),
		slog.Int("effective_total", effectiveTotal),
		slog.Int("results", len(results)))

	accumulated := collectPages(batches, effectiveTotal)

	sendProgress(ctx, progress, entity.SearchProgress{
		SearchID:    searchID,
		CurrentPage: 1,
		TotalPages:  effectiveTotal,
		Results:     accumulated,
		PagesFailed: pagesFailed,
		IsComplete:  effectiveTotal <= 1,
	})

	if effectiveTotal <= 1 {
		firstPage.Close()

		return s.respond(searchID, req, accumulated, effectiveTotal, pagesFailed), nil
	}

	remaining := effectiveTotal - 1
	workers := concurrency
	if workers > remaining {
		workers = remaining
	}

	in := make(chan int, remaining)
	for page := 2; page <= effectiveTotal; page++ {
		in <- page
	}
	close(in)

	out := make(chan pageResult, remaining)

	// Worker zero reuses the first page handle, the rest get their own.
	pages := []browser.Page{firstPage}
	for n := 1; n < workers; n++ {
		p, err := s.gw.NewPageWithCookies(ctx, cookies)
		if err != nil {
			log.Warn("Cannot open pool page", slog.Int("worker_id", n), slog.Any("error", err))

			break
		}
		pages = append(pages, p)
	}
	defer func() {
		for _, p := range pages {
			p.Close()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(len(pages))
	for n, p := range pages {
		go s.worker(ctx, n, p, req.Query, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	done := 0
	for pr := range out {
		done++

		if pr.err != nil {
			pagesFailed++
			log.Warn("Page fetch failed", slog.Int("page", pr.page), slog.Any("error", pr.err))
		} else {
			batches[pr.page] = pr.results
		}

		accumulated = collectPages(batches, effectiveTotal)

		sendProgress(ctx, progress, entity.SearchProgress{
			SearchID:    searchID,
			CurrentPage: 1 + done,
			TotalPages:  effectiveTotal,
			Results:     accumulated,
			PagesFailed: pagesFailed,
			IsComplete:  done == remaining,
		})
	}

	log.Info("Search finished",
		slog.Int("results", len(accumulated)),
		slog.Int("pages_failed", pagesFailed))

	return s.respond(searchID, req, accumulated, effectiveTotal, pagesFailed), nil
}

func (s *SearchService) worker(ctx context.Context, n int, p browser.Page, query string, in <-chan int, out chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.log.With(slog.Int("worker_id", n))

	for page := range in {
		select {
		case <-ctx.Done():
			out <- pageResult{page: page, err: ctx.Err()}

			continue
		default:
		}

		results, _, err := s.fetchPage(ctx, p, query, page)
		if err != nil {
			out <- pageResult{page: page, err: err}

			continue
		}

		log.Debug("Page fetched", slog.Int("page", page), slog.Int("results", len(results)))
		out <- pageResult{page: page, results: results}
	}
}

// fetchPage consults the cache first, then navigates, parses and fills the
// cache. Returns the rows and the site-reported total page count.
func (s *SearchService) fetchPage(ctx context.Context, p browser.Page, query string, page int) ([]entity.SearchResult, int, error) {
	if s.cache != nil {
		results, total, err := s.cache.GetPage(ctx, query, page)
		if err == nil {
			return results, total, nil
		}
		if !errors.Is(err, common.ErrCacheMiss) {
			s.log.Warn("Cache read failed", slog.Int("page", page), slog.Any("error", err))
		}
	}

	url := s.prof.SearchURL(query, page)
	if err := p.NavigateAndWait(ctx, url, s.prof.Selectors.ResultsTable[0]); err != nil {
		return nil, 0, err
	}

	src, err := p.OuterHTML(ctx)
	if err != nil {
		return nil, 0, err
	}

	results := s.parser.ParseResults(src)
	parser.Postprocess(results, query)
	total := s.parser.TotalPages(src)

	if s.cache != nil {
		if err := s.cache.PutPage(ctx, query, page, results, total); err != nil {
			s.log.Warn("Cache write failed", slog.Int("page", page), slog.Any("error", err))
		}
	}

	return results, total, nil
}

func (s *SearchService) respond(searchID string, req Request, accumulated []entity.SearchResult, totalPages, pagesFailed int) *entity.SearchResponse {
	results := filter.Apply(accumulated, req.Filters)
	results = filter.Sort(results, req.Sort)

	return &entity.SearchResponse{
		SearchID:    searchID,
		Query:       req.Query,
		Results:     results,
		TotalPages:  totalPages,
		PagesFailed: pagesFailed,
	}
}

// collectPages flattens the settled batches in ascending page order,
// keeping the first-seen entry per topic id. Rebuilt on every settle so
// duplicate resolution never depends on fetch completion order; a fresh
// slice comes back each time, safe to hand to the progress channel.
func collectPages(batches map[int][]entity.SearchResult, totalPages int) []entity.SearchResult {
	seen := make(map[string]struct{})

	var out []entity.SearchResult
	for page := 1; page <= totalPages; page++ {
		for _, r := range batches[page] {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}

	return out
}

// sendProgress delivers an event unless the caller opted out or went away.
func sendProgress(ctx context.Context, progress chan<- entity.SearchProgress, ev entity.SearchProgress) {
	if progress == nil {
		return
	}

	select {
	case progress <- ev:
	case <-ctx.Done():
	}
}
