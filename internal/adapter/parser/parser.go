package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jgivc/tracksearch/internal/adapter/profile"
	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/util"
)

const (
	unknownTitle  = "Unknown Title"
	unknownAuthor = "Unknown Author"
)

var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"02-Jan-06",
	"02.01.2006",
	"2-Jan-06 15:04",
}

// Parser turns rendered results-page HTML into SearchResult rows. It is
// pure: the gateway hands over the page source, nothing here touches the
// browser.
type Parser struct {
	prof *profile.Profile
	log  *slog.Logger
}

func NewParser(prof *profile.Profile, log *slog.Logger) *Parser {
	return &Parser{
		prof: prof,
		log:  log.With(slog.String("item", "Parser")),
	}
}

// ParseResults extracts result rows from a results page. A missing results
// table is a normal "no results" outcome and yields an empty slice. One
// malformed row never aborts the page: missing fields fall back to
// placeholder values.
func (p *Parser) ParseResults(src string) []entity.SearchResult {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		p.log.Error("Cannot parse page html", slog.Any("error", err))

		return []entity.SearchResult{}
	}

	table := selectOne(doc, p.prof.Selectors.ResultsTable)
	if table == nil {
		return []entity.SearchResult{}
	}

	var rows []*html.Node
	for _, sel := range p.prof.Selectors.ResultRow {
		if rows = findAll(table, sel); len(rows) > 0 {
			break
		}
	}

	results := make([]entity.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, p.parseRow(row))
	}

	return results
}

func (p *Parser) parseRow(row *html.Node) entity.SearchResult {
	res := entity.SearchResult{
		Title:  unknownTitle,
		Author: unknownAuthor,
	}

	if n := selectOne(row, p.prof.Selectors.Title); n != nil {
		if title := nodeText(n); title != "" {
			res.Title = title
		}
		res.URL = p.prof.AbsoluteURL(attrVal(n, "href"))
		res.ID = topicID(attrVal(n, "href"))
	}

	if res.ID == "" {
		if id := attrVal(row, "data-topic_id"); id != "" {
			res.ID = id
		} else {
			key := res.Title + res.URL
			res.ID = util.GetIDFromString(&key)
		}
	}

	if n := selectOne(row, p.prof.Selectors.Author); n != nil {
		if author := nodeText(n); author != "" {
			res.Author = author
		}
	}
	if n := selectOne(row, p.prof.Selectors.Size); n != nil {
		res.Size = nodeText(n)
	}
	res.Seeders = parseCount(selectOne(row, p.prof.Selectors.Seeders))
	res.Leechers = parseCount(selectOne(row, p.prof.Selectors.Leechers))
	if n := selectOne(row, p.prof.Selectors.Category); n != nil {
		res.Category = nodeText(n)
	}
	if n := selectOne(row, p.prof.Selectors.UploadDate); n != nil {
		res.UploadDate = parseDate(nodeText(n))
	}

	return res
}

// TotalPages scans pagination anchors for the maximum numeric page label.
// Unknown pagination means a single page.
func (p *Parser) TotalPages(src string) int {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return 1
	}

	total := 1
	for _, sel := range p.prof.Selectors.Pagination {
		for _, n := range findAll(doc, sel) {
			if v, err := strconv.Atoi(nodeText(n)); err == nil && v > total {
				total = v
			}
		}
	}

	return total
}

// topicID pulls the site's native topic identifier from a result href,
// e.g. viewtopic.php?t=123456 -> 123456.
func topicID(href string) string {
	if href == "" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return u.Query().Get("t")
}

func parseCount(n *html.Node) int {
	if n == nil {
		return 0
	}

	v, err := strconv.Atoi(nodeText(n))
	if err != nil || v < 0 {
		return 0
	}

	return v
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
