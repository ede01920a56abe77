// Package view derives display lists from a snapshot: genre filter, rating
// sort and the genre selector. Every function returns a new slice and leaves
// its input untouched.
package view

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// SortOrder selects the rating sort applied to a list.
type SortOrder string

// Sort orders.
const (
	SortDefault SortOrder = "default"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ParseSortOrder accepts "", "default", "highest" and "lowest" in any case.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "", SortDefault:
		return SortDefault, nil
	case SortHighest, SortLowest:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrInvalidSortOrder, s)
	}
}

// Filter keeps records whose genre equals genre exactly. An empty genre
// keeps everything.
func Filter(records []types.Record, genre string) []types.Record {
	if genre == "" {
		return slices.Clone(records)
	}
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r.Genre == genre {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders records by rating. Ties, and every pair under SortDefault,
// keep their input order.
func Sort(records []types.Record, order SortOrder) []types.Record {
	out := slices.Clone(records)
	switch order {
	case SortHighest:
		slices.SortStableFunc(out, func(a, b types.Record) int { return cmp.Compare(b.Rating, a.Rating) })
	case SortLowest:
		slices.SortStableFunc(out, func(a, b types.Record) int { return cmp.Compare(a.Rating, b.Rating) })
	}
	return out
}

// Apply filters by genre, then sorts.
func Apply(records []types.Record, genre string, order SortOrder) []types.Record {
	return Sort(Filter(records, genre), order)
}

// Genres lists the distinct genres in first-seen order.
func Genres(records []types.Record) []string {
	seen := make(map[string]bool, len(records))
	out := []string{}
	for _, r := range records {
		if !seen[r.Genre] {
			seen[r.Genre] = true
			out = append(out, r.Genre)
		}
	}
	return out
}
