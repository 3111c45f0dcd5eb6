package filter

import (
	"sort"
	"strings"

	"github.com/jgivc/tracksearch/internal/entity"
)

const bytesPerMB = 1 << 20

// Apply filters results with a conjunctive predicate. Unset filter fields
// pass everything through; input order is preserved.
func Apply(results []entity.SearchResult, f entity.SearchFilters) []entity.SearchResult {
	out := make([]entity.SearchResult, 0, len(results))

	for _, r := range results {
		if !match(r, f) {
			continue
		}
		out = append(out, r)
	}

	return out
}

func match(r entity.SearchResult, f entity.SearchFilters) bool {
	if f.Format != "" && !strings.EqualFold(r.Format, f.Format) {
		return false
	}
	if f.MinSeeders > 0 && r.Seeders < f.MinSeeders {
		return false
	}

	sizeMB := float64(r.SizeBytes) / bytesPerMB
	if f.MinSizeMB > 0 && sizeMB < f.MinSizeMB {
		return false
	}
	if f.MaxSizeMB > 0 && sizeMB > f.MaxSizeMB {
		return false
	}

	if len(f.Categories) > 0 {
		var ok bool
		for _, c := range f.Categories {
			if strings.EqualFold(r.Category, c) {
				ok = true

				break
			}
		}
		if !ok {
			return false
		}
	}

	if !f.DateFrom.IsZero() && r.UploadDate.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && r.UploadDate.After(f.DateTo) {
		return false
	}

	return true
}

// Sort orders a copy of results, the input is never mutated. Title sorts
// lexicographically with asc as the natural A-Z direction; every other
// field ranks by domain value (more seeders, bigger size, newer date,
// higher relevance) inverted by the Desc flag.
func Sort(results []entity.SearchResult, s entity.SearchSort) []entity.SearchResult {
	out := make([]entity.SearchResult, len(results))
	copy(out, results)

	if s.Field == "" {
		return out
	}

	less := lessFunc(s.Field)
	if less == nil {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if s.Desc {
			return less(out[j], out[i])
		}

		return less(out[i], out[j])
	})

	return out
}

func lessFunc(field entity.SortField) func(a, b entity.SearchResult) bool {
	switch field {
	case entity.SortRelevance:
		return func(a, b entity.SearchResult) bool { return a.RelevanceScore < b.RelevanceScore }
	case entity.SortSeeders:
		return func(a, b entity.SearchResult) bool { return a.Seeders < b.Seeders }
	case entity.SortSize:
		return func(a, b entity.SearchResult) bool { return a.SizeBytes < b.SizeBytes }
	case entity.SortDate:
		return func(a, b entity.SearchResult) bool { return a.UploadDate.Before(b.UploadDate) }
	case entity.SortTitle:
		return func(a, b entity.SearchResult) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	}

	return nil
}
