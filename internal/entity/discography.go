package entity

// DiscographyAlbumEntry is one parsed album block from a discography page.
type DiscographyAlbumEntry struct {
	Title       string `json:"title"`
	Year        int    `json:"year,omitempty"`
	RawText     string `json:"raw_text,omitempty"`
	Duration    string `json:"duration,omitempty"`
	ReleaseInfo string `json:"release_info,omitempty"`
}

// PageContentScanResult is the outcome of scanning one candidate page for a
// target album. Transient, never persisted.
type PageContentScanResult struct {
	Result        SearchResult            `json:"result"`
	AlbumFound    bool                    `json:"album_found"`
	MatchedAlbums []DiscographyAlbumEntry `json:"matched_albums,omitempty"`
	AllAlbums     []DiscographyAlbumEntry `json:"all_albums,omitempty"`
	IsDiscography bool                    `json:"is_discography"`
	PageTitle     string                  `json:"page_title,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

type DiscographySearchResponse struct {
	Album   string                  `json:"album"`
	Artist  string                  `json:"artist,omitempty"`
	Scanned int                     `json:"scanned"`
	Found   int                     `json:"found"`
	Results []PageContentScanResult `json:"results"`
}

// ScanProgress is pushed after every scanned candidate.
type ScanProgress struct {
	Current    int                   `json:"current"`
	Total      int                   `json:"total"`
	Last       PageContentScanResult `json:"last"`
	IsComplete bool                  `json:"is_complete"`
}
