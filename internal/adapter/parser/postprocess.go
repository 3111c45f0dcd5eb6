package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jgivc/tracksearch/internal/entity"
	"github.com/jgivc/tracksearch/internal/util"
)

// Audio format tokens in detection order. Lossless formats first so that
// titles like "FLAC (tracks) / mp3 cue" resolve to the better source.
var formatTokens = []string{"flac", "alac", "ape", "wavpack", "wv", "dsd", "dts", "wav", "m4a", "aac", "ogg", "mp3"}

var sizeRe = regexp.MustCompile(`(?i)([\d]+(?:[.,]\d+)?)\s*(B|KB|MB|GB|TB)`)

var sizeMultipliers = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// Postprocess attaches the derived fields (format, size in bytes, relevance
// score) to already extracted rows. Kept outside the DOM boundary so it can
// be unit tested without a browser.
func Postprocess(results []entity.SearchResult, query string) {
	for i := range results {
		results[i].Format = DetectFormat(results[i].Title)
		results[i].SizeBytes = ParseSizeBytes(results[i].Size)
		results[i].RelevanceScore = Relevance(query, results[i].Title)
	}
}

// DetectFormat finds an audio format token in a result title. Empty when
// nothing matches.
func DetectFormat(title string) string {
	tokens := make(map[string]struct{})
	for _, t := range util.Tokenize(title) {
		tokens[t] = struct{}{}
	}

	for _, f := range formatTokens {
		if _, ok := tokens[f]; ok {
			return f
		}
	}

	return ""
}

// ParseSizeBytes converts a display size like "1.4 GB" to bytes. Zero when
// the string does not look like a size.
func ParseSizeBytes(display string) int64 {
	m := sizeRe.FindStringSubmatch(display)
	if m == nil {
		return 0
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}

	return int64(v * sizeMultipliers[strings.ToUpper(m[2])])
}

// Relevance scores a title against the query as the fraction of query
// tokens present in the title.
func Relevance(query, title string) float64 {
	qTokens := util.Tokenize(query)
	if len(qTokens) == 0 {
		return 0
	}

	tTokens := make(map[string]struct{})
	for _, t := range util.Tokenize(title) {
		tTokens[t] = struct{}{}
	}

	var hits int
	for _, t := range qTokens {
		if _, ok := tTokens[t]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(qTokens))
}
