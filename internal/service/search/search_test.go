package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jgivc/tracksearch/internal/adapter/browser"
	"github.com/jgivc/tracksearch/internal/adapter/profile"
	"github.com/jgivc/tracksearch/internal/common"
	"github.com/jgivc/tracksearch/internal/config"
	"github.com/jgivc/tracksearch/internal/entity"
)

type fakePage struct {
	mu      sync.Mutex
	gw      *fakeGateway
	lastURL string
	closed  bool
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.NavigateAndWait(ctx, url, "")
}

func (p *fakePage) NavigateAndWait(ctx context.Context, url, selector string) error {
	if d := p.gw.navDelays[url]; d > 0 {
		time.Sleep(d)
	}
	if err := p.gw.navErrs[url]; err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastURL = url

	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *fakePage) SetCookies(ctx context.Context, cookies []entity.SessionCookie) error {
	return nil
}

func (p *fakePage) Cookies(ctx context.Context) ([]entity.SessionCookie, error) {
	return nil, nil
}

// OuterHTML hands back the navigated URL; the fake parser uses it as the
// page source key.
func (p *fakePage) OuterHTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastURL, nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) { return "", nil }

func (p *fakePage) Title(ctx context.Context) (string, error) { return "", nil }

func (p *fakePage) HasElement(ctx context.Context, selector string) (bool, error) {
	return false, nil
}

func (p *fakePage) SendKeys(ctx context.Context, selector, value string) error { return nil }

func (p *fakePage) Click(ctx context.Context, selector string) error { return nil }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	pages     []*fakePage
	navErrs   map[string]error
	navDelays map[string]time.Duration
}

func (g *fakeGateway) NewPage(ctx context.Context) (browser.Page, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := &fakePage{gw: g}
	g.pages = append(g.pages, p)

	return p, nil
}

func (g *fakeGateway) NewPageWithCookies(ctx context.Context, cookies []entity.SessionCookie) (browser.Page, error) {
	return g.NewPage(ctx)
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) created() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.pages)
}

type fakeParser struct {
	results map[string][]entity.SearchResult
	totals  map[string]int
}

func (p *fakeParser) ParseResults(src string) []entity.SearchResult {
	return p.results[src]
}

func (p *fakeParser) TotalPages(src string) int {
	if t, ok := p.totals[src]; ok {
		return t
	}

	return 1
}

type fakeSession struct {
	err error
}

func (s *fakeSession) Cookies() ([]entity.SessionCookie, error) {
	if s.err != nil {
		return nil, s.err
	}

	return []entity.SessionCookie{{Name: "bb", Value: "v"}}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]entity.SearchResult
	totals  map[string]int
	puts    int
}

func cacheKey(query string, page int) string { return fmt.Sprintf("%s|%d", query, page) }

func (c *fakeCache) GetPage(ctx context.Context, query string, page int) ([]entity.SearchResult, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rs, ok := c.entries[cacheKey(query, page)]; ok {
		return rs, c.totals[cacheKey(query, page)], nil
	}

	return nil, 0, common.ErrCacheMiss
}

func (c *fakeCache) PutPage(ctx context.Context, query string, page int, results []entity.SearchResult, totalPages int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++

	return nil
}

type fixture struct {
	gw      *fakeGateway
	parser  *fakeParser
	prof    *profile.Profile
	service *SearchService
}

func newFixture(t *testing.T, cache PageCache) *fixture {
	t.Helper()

	gw := &fakeGateway{navErrs: map[string]error{}, navDelays: map[string]time.Duration{}}
	p := &fakeParser{results: map[string][]entity.SearchResult{}, totals: map[string]int{}}
	prof := profile.Default()
	cfg := &config.SearchConfig{MaxPages: HardMaxPages, ConcurrentPages: 3}

	return &fixture{
		gw:      gw,
		parser:  p,
		prof:    prof,
		service: NewSearchService(gw, prof, p, &fakeSession{}, cache, cfg, testLog()),
	}
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func (f *fixture) pageURL(query string, page int) string {
	return f.prof.SearchURL(query, page)
}

func (f *fixture) setPage(query string, page, total int, results ...entity.SearchResult) {
	url := f.pageURL(query, page)
	f.parser.results[url] = results
	f.parser.totals[url] = total
}

func drain(ch chan entity.SearchProgress) []entity.SearchProgress {
	close(ch)

	var events []entity.SearchProgress
	for ev := range ch {
		events = append(events, ev)
	}

	return events
}

func TestDedupAcrossPages(t *testing.T) {
	f := newFixture(t, nil)

	f.setPage("q", 1, 2,
		entity.SearchResult{ID: "A", Title: "A from page 1"},
		entity.SearchResult{ID: "B", Title: "B from page 1"},
	)
	f.setPage("q", 2, 2,
		entity.SearchResult{ID: "B", Title: "B from page 2"},
		entity.SearchResult{ID: "C", Title: "C from page 2"},
	)

	resp, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 2, ConcurrentPages: 2},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	byID := map[string]entity.SearchResult{}
	for _, r := range resp.Results {
		byID[r.ID] = r
	}
	// First seen wins: B must be the page-one entry.
	require.Equal(t, "B from page 1", byID["B"].Title)
	require.Contains(t, byID, "A")
	require.Contains(t, byID, "C")
}

func TestPageCapInvariant(t *testing.T) {
	f := newFixture(t, nil)

	// Site reports 20 pages, caller asks for 15: the hard cap of 10 wins.
	f.setPage("q", 1, 20, entity.SearchResult{ID: "1"})
	for page := 2; page <= 20; page++ {
		f.setPage("q", page, 20, entity.SearchResult{ID: fmt.Sprintf("%d", page)})
	}

	progress := make(chan entity.SearchProgress, 32)
	resp, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 15, ConcurrentPages: 3},
	}, progress)
	require.NoError(t, err)

	events := drain(progress)
	require.NotEmpty(t, events)
	for _, ev := range events {
		require.Equal(t, HardMaxPages, ev.TotalPages)
	}

	require.Equal(t, HardMaxPages, resp.TotalPages)
	require.Len(t, resp.Results, HardMaxPages)
	require.True(t, events[len(events)-1].IsComplete)
}

func TestConfigPaginationDefaults(t *testing.T) {
	f := newFixture(t, nil)

	var cfg config.Config
	cfg.SetDefaults()
	svc := NewSearchService(f.gw, f.prof, f.parser, &fakeSession{}, nil, &cfg.Search, testLog())

	// Site reports 20 pages; the request leaves pagination unset, so the
	// configured default bounds the walk, not the hard cap.
	for page := 1; page <= 20; page++ {
		f.setPage("q", page, 20, entity.SearchResult{ID: fmt.Sprintf("%d", page)})
	}

	resp, err := svc.Execute(context.Background(), Request{Query: "q"}, nil)
	require.NoError(t, err)
	require.Equal(t, cfg.Search.MaxPages, resp.TotalPages)
	require.Len(t, resp.Results, cfg.Search.MaxPages)
}

func TestDedupPageOrderWins(t *testing.T) {
	f := newFixture(t, nil)

	// Page 3 resolves before the slower page 2; the page-2 entry must
	// still win the duplicate.
	f.setPage("q", 1, 3, entity.SearchResult{ID: "A", Title: "A"})
	f.setPage("q", 2, 3, entity.SearchResult{ID: "X", Title: "X from page 2"})
	f.setPage("q", 3, 3, entity.SearchResult{ID: "X", Title: "X from page 3"})
	f.gw.navDelays[f.pageURL("q", 2)] = 50 * time.Millisecond

	resp, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 3, ConcurrentPages: 2},
	}, nil)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)

	byID := map[string]entity.SearchResult{}
	for _, r := range resp.Results {
		byID[r.ID] = r
	}
	require.Equal(t, "X from page 2", byID["X"].Title)
}

func TestSinglePageShortCircuit(t *testing.T) {
	f := newFixture(t, nil)

	f.setPage("q", 1, 1, entity.SearchResult{ID: "only"})

	progress := make(chan entity.SearchProgress, 4)
	resp, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 5, ConcurrentPages: 4},
	}, progress)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	events := drain(progress)
	require.Len(t, events, 1)
	require.True(t, events[0].IsComplete)
	require.Equal(t, 1, events[0].TotalPages)

	// Exactly one page object was created and it is closed; no pool.
	require.Equal(t, 1, f.gw.created())
	require.True(t, f.gw.pages[0].closed)
}

func TestPartialFailureTolerance(t *testing.T) {
	f := newFixture(t, nil)

	f.setPage("q", 1, 3, entity.SearchResult{ID: "p1"})
	f.gw.navErrs[f.pageURL("q", 2)] = fmt.Errorf("navigation timeout")
	f.setPage("q", 3, 3, entity.SearchResult{ID: "p3"})

	progress := make(chan entity.SearchProgress, 8)
	resp, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 3, ConcurrentPages: 2},
	}, progress)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	require.Equal(t, 1, resp.PagesFailed)

	events := drain(progress)
	final := events[len(events)-1]
	require.True(t, final.IsComplete)
	require.Equal(t, 1, final.PagesFailed)
}

func TestAllPagesClosed(t *testing.T) {
	f := newFixture(t, nil)

	f.setPage("q", 1, 4, entity.SearchResult{ID: "1"})
	for page := 2; page <= 4; page++ {
		f.setPage("q", page, 4, entity.SearchResult{ID: fmt.Sprintf("%d", page)})
	}

	_, err := f.service.Execute(context.Background(), Request{
		Query:      "q",
		Pagination: entity.PaginationConfig{MaxPages: 4, ConcurrentPages: 2},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, 2, f.gw.created())
	for _, p := range f.gw.pages {
		require.True(t, p.closed)
	}
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t, nil)
	f.service.running.Store(true)

	_, err := f.service.Execute(context.Background(), Request{Query: "q"}, nil)
	require.ErrorIs(t, err, common.ErrSearchHasAlreadyStarted)
}

func TestNotLoggedIn(t *testing.T) {
	f := newFixture(t, nil)
	f.service.session = &fakeSession{err: common.ErrNotLoggedIn}

	_, err := f.service.Execute(context.Background(), Request{Query: "q"}, nil)
	require.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestCacheHitSkipsNavigation(t *testing.T) {
	cache := &fakeCache{
		entries: map[string][]entity.SearchResult{
			cacheKey("q", 1): {{ID: "cached"}},
		},
		totals: map[string]int{cacheKey("q", 1): 1},
	}

	f := newFixture(t, cache)

	resp, err := f.service.Execute(context.Background(), Request{Query: "q"}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "cached", resp.Results[0].ID)

	// Page one came from the cache, the page handle never navigated.
	require.Equal(t, "", f.gw.pages[0].lastURL)
	require.Equal(t, 0, cache.puts)
}

func TestFiltersAndSortApplied(t *testing.T) {
	f := newFixture(t, nil)

	f.setPage("q", 1, 1,
		entity.SearchResult{ID: "1", Title: "one flac", Seeders: 10},
		entity.SearchResult{ID: "2", Title: "two flac", Seeders: 90},
		entity.SearchResult{ID: "3", Title: "three mp3", Seeders: 50},
	)

	resp, err := f.service.Execute(context.Background(), Request{
		Query:   "q",
		Filters: entity.SearchFilters{Format: "flac"},
		Sort:    entity.SearchSort{Field: entity.SortSeeders, Desc: true},
	}, nil)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	require.Equal(t, "2", resp.Results[0].ID)
	require.Equal(t, "1", resp.Results[1].ID)
}

func TestFirstPageFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.navErrs[f.pageURL("q", 1)] = fmt.Errorf("site down")

	progress := make(chan entity.SearchProgress, 4)
	resp, err := f.service.Execute(context.Background(), Request{Query: "q"}, progress)
	require.NoError(t, err)
	require.Empty(t, resp.Results)
	require.Equal(t, 1, resp.PagesFailed)

	events := drain(progress)
	require.Len(t, events, 1)
	require.True(t, events[0].IsComplete)
}
