package entity

import "time"

// SearchResult is a single row extracted from a tracker results page.
type SearchResult struct {
	ID             string    `json:"id"` // Native topic id of the site, dedup key across pages
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	Size           string    `json:"size"` // Display string as shown on the page
	SizeBytes      int64     `json:"size_bytes,omitempty"`
	Seeders        int       `json:"seeders"`
	Leechers       int       `json:"leechers"`
	URL            string    `json:"url"`
	Format         string    `json:"format,omitempty"`
	Category       string    `json:"category,omitempty"`
	UploadDate     time.Time `json:"upload_date,omitempty"`
	RelevanceScore float64   `json:"relevance_score,omitempty"`
}

// SearchFilters is a conjunctive predicate over a result set. A zero field
// is a pass-through, there are no implicit defaults.
type SearchFilters struct {
	Format     string    `json:"format,omitempty"`
	MinSeeders int       `json:"min_seeders,omitempty"`
	MinSizeMB  float64   `json:"min_size_mb,omitempty"`
	MaxSizeMB  float64   `json:"max_size_mb,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	DateFrom   time.Time `json:"date_from,omitempty"`
	DateTo     time.Time `json:"date_to,omitempty"`
}

type SortField string

const (
	SortRelevance SortField = "relevance"
	SortSeeders   SortField = "seeders"
	SortDate      SortField = "date"
	SortSize      SortField = "size"
	SortTitle     SortField = "title"
)

// SearchSort describes result ordering. For title asc is the natural A-Z
// direction; for every other field desc is the natural best-first direction.
type SearchSort struct {
	Field SortField `json:"field"`
	Desc  bool      `json:"desc"`
}

type PaginationConfig struct {
	MaxPages        int `json:"max_pages"`
	ConcurrentPages int `json:"concurrent_pages"`
}

// SearchProgress is pushed to the caller channel after page one and after
// every further page settles. The final event always has IsComplete set.
type SearchProgress struct {
	SearchID    string         `json:"search_id"`
	CurrentPage int            `json:"current_page"`
	TotalPages  int            `json:"total_pages"`
	Results     []SearchResult `json:"results"`
	PagesFailed int            `json:"pages_failed"`
	IsComplete  bool           `json:"is_complete"`
}

type SearchResponse struct {
	SearchID    string         `json:"search_id"`
	Query       string         `json:"query"`
	Results     []SearchResult `json:"results"`
	TotalPages  int            `json:"total_pages"`
	PagesFailed int            `json:"pages_failed"`
}
