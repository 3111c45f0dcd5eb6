package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jgivc/tracksearch/internal/entity"
)

// A discography page lists album blocks with year-prefixed headers like
// "1973 - The Dark Side of the Moon" or "[1979] The Wall (2CD, Remaster)".
// This is inherently heuristic free-text parsing, kept pure and exercised
// with fixture strings.

const discographyMinBlocks = 4

var (
	albumHeaderRe = regexp.MustCompile(`^\s*[\[(]?((?:19|20)\d{2})[\])]?\s*[-–—.:]?\s+(.{2,})$`)
	durationRe    = regexp.MustCompile(`\b(\d{1,2}:\d{2}(?::\d{2})?)\b`)
	releaseInfoRe = regexp.MustCompile(`\(([^)]+)\)\s*$`)
)

// ParseAlbumBlocks splits page text into album entries. Lines between two
// headers belong to the preceding block.
func ParseAlbumBlocks(text string) []entity.DiscographyAlbumEntry {
	var (
		blocks  []entity.DiscographyAlbumEntry
		current *entity.DiscographyAlbumEntry
		raw     strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}

		current.RawText = strings.TrimSpace(raw.String())
		if m := durationRe.FindStringSubmatch(current.RawText); m != nil {
			current.Duration = m[1]
		}
		blocks = append(blocks, *current)
		current = nil
		raw.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if m := albumHeaderRe.FindStringSubmatch(line); m != nil {
			flush()

			year, _ := strconv.Atoi(m[1])
			title := strings.TrimSpace(m[2])

			entry := entity.DiscographyAlbumEntry{Year: year, Title: title}
			if ri := releaseInfoRe.FindStringSubmatch(title); ri != nil {
				entry.ReleaseInfo = ri[1]
				entry.Title = strings.TrimSpace(strings.TrimSuffix(title, ri[0]))
			}

			current = &entry

			continue
		}

		if current != nil && line != "" {
			raw.WriteString(line)
			raw.WriteString("\n")
		}
	}
	flush()

	return blocks
}

// MatchAlbums returns the blocks whose title or snippet text contains the
// album name, case-insensitive.
func MatchAlbums(blocks []entity.DiscographyAlbumEntry, album string) []entity.DiscographyAlbumEntry {
	needle := strings.ToLower(album)

	var matched []entity.DiscographyAlbumEntry
	for _, b := range blocks {
		if strings.Contains(strings.ToLower(b.Title), needle) ||
			strings.Contains(strings.ToLower(b.RawText), needle) {
			matched = append(matched, b)
		}
	}

	return matched
}

// ScanContent decides whether a page contains the target album. With
// structured blocks present, the album must match one of them and, when an
// artist is given, the full page text must also mention the artist. Without
// blocks it falls back to a plain substring search for the album alone.
func ScanContent(text, album, artist string) (found bool, matched, all []entity.DiscographyAlbumEntry, isDiscography bool) {
	all = ParseAlbumBlocks(text)
	isDiscography = len(all) >= discographyMinBlocks

	if len(all) > 0 {
		matched = MatchAlbums(all, album)
		found = len(matched) > 0
		if found && artist != "" {
			found = strings.Contains(strings.ToLower(text), strings.ToLower(artist))
		}

		return found, matched, all, isDiscography
	}

	found = strings.Contains(strings.ToLower(text), strings.ToLower(album))

	return found, nil, nil, isDiscography
}
