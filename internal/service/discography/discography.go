package discography

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/tracksearch/internal/adapter/browser"
	"github.com/jgivc/tracksearch/internal/adapter/parser"
	"github.com/jgivc/tracksearch/internal/entity"
)

const (
	serviceName = "discography"

	defaultPageTimeout = 30 * time.Second
	bodySelector       = "body"
)

type SessionSource interface {
	Cookies() ([]entity.SessionCookie, error)
}

type Request struct {
	Candidates    []entity.SearchResult
	Album         string
	Artist        string
	MaxConcurrent int
	PageTimeout   time.Duration
}

// ScanService verifies candidate result pages against a target album: it
// opens each candidate, pulls the page text and looks for album blocks.
// One page per candidate, opened and closed inside the worker; no pooled
// reuse.
type ScanService struct {
	gw      browser.Gateway
	session SessionSource
	log     *slog.Logger
}

func NewScanService(gw browser.Gateway, session SessionSource, log *slog.Logger) *ScanService {
	return &ScanService{
		gw:      gw,
		session: session,
		log:     log.With(slog.String("service", serviceName)),
	}
}

type indexedResult struct {
	index  int
	result entity.PageContentScanResult
}

// Scan walks the candidates with bounded concurrency. Per-page failures
// become result records with an error string; the batch always runs to
// completion. Results keep candidate order.
func (s *ScanService) Scan(ctx context.Context, req Request, progress chan<- entity.ScanProgress) (*entity.DiscographySearchResponse, error) {
	cookies, err := s.session.Cookies()
	if err != nil {
		return nil, err
	}

	total := len(req.Candidates)
	resp := &entity.DiscographySearchResponse{
		Album:  req.Album,
		Artist: req.Artist,
	}
	if total == 0 {
		sendProgress(ctx, progress, entity.ScanProgress{IsComplete: true})

		return resp, nil
	}

	workers := req.MaxConcurrent
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	timeout := req.PageTimeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}

	s.log.Info("Content scan started",
		slog.String("album", req.Album),
		slog.Int("candidates", total),
		slog.Int("workers", workers))

	in := make(chan int, total)
	for i := range req.Candidates {
		in <- i
	}
	close(in)

	out := make(chan indexedResult, total)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go func() {
			defer wg.Done()

			for i := range in {
				out <- indexedResult{
					index:  i,
					result: s.scanCandidate(ctx, cookies, req.Candidates[i], req.Album, req.Artist, timeout),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]entity.PageContentScanResult, total)
	done := 0
	for ir := range out {
		results[ir.index] = ir.result
		done++

		sendProgress(ctx, progress, entity.ScanProgress{
			Current:    done,
			Total:      total,
			Last:       ir.result,
			IsComplete: done == total,
		})
	}

	resp.Results = results
	resp.Scanned = total
	for _, r := range results {
		if r.AlbumFound {
			resp.Found++
		}
	}

	s.log.Info("Content scan finished",
		slog.Int("scanned", resp.Scanned),
		slog.Int("found", resp.Found))

	return resp, nil
}

// scanCandidate opens one page, extracts its text and closes it. Any
// failure lands in the Error field, never in a returned error.
func (s *ScanService) scanCandidate(ctx context.Context, cookies []entity.SessionCookie, candidate entity.SearchResult, album, artist string, timeout time.Duration) entity.PageContentScanResult {
	res := entity.PageContentScanResult{Result: candidate}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := s.gw.NewPageWithCookies(ctx, cookies)
	if err != nil {
		res.Error = err.Error()

		return res
	}
	defer page.Close()

	if err := page.Navigate(ctx, candidate.URL); err != nil {
		s.log.Warn("Cannot open candidate page",
			slog.String("url", candidate.URL), slog.Any("error", err))
		res.Error = err.Error()

		return res
	}

	text, err := page.Text(ctx, bodySelector)
	if err != nil {
		res.Error = err.Error()

		return res
	}

	if title, err := page.Title(ctx); err == nil {
		res.PageTitle = title
	}

	res.AlbumFound, res.MatchedAlbums, res.AllAlbums, res.IsDiscography = parser.ScanContent(text, album, artist)

	return res
}

func sendProgress(ctx context.Context, progress chan<- entity.ScanProgress, ev entity.ScanProgress) {
	if progress == nil {
		return
	}

	select {
	case progress <- ev:
	case <-ctx.Done():
	}
}
