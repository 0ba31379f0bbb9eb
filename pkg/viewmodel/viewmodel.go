// Package viewmodel derives what the UI shows from a fetched collection.
// Every function here is pure: inputs are never modified and the same inputs
// always give the same output.
package viewmodel

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/sahilm/fuzzy"
)

// Record is what the view model needs from a pull request or issue.
type Record interface {
	GetState() string
	GetSubmitDate() time.Time
	GetCommentCount() int
	GetTitle() string
}

// FilterMode selects records by state.
type FilterMode int

const (
	FilterAll FilterMode = iota
	FilterOpen
	FilterClosed
)

var filterNames = []string{"all", "open", "closed"}

func (f FilterMode) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("FilterMode(%d)", int(f))
	}
	return filterNames[f]
}

// Next is the mode after f, wrapping around.
func (f FilterMode) Next() FilterMode {
	return (f + 1) % FilterMode(len(filterNames))
}

// ParseFilter reads a filter name as printed by String.
func ParseFilter(s string) (FilterMode, error) {
	for i, name := range filterNames {
		if s == name {
			return FilterMode(i), nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter %q, expected one of %v", s, filterNames)
}

// SortOrder orders records by submit date or comment count.
type SortOrder int

const (
	SortNewest SortOrder = iota
	SortOldest
	SortMostComments
	SortLeastComments
)

var sortNames = []string{"newest", "oldest", "most-comments", "least-comments"}

func (s SortOrder) String() string {
	if s < 0 || int(s) >= len(sortNames) {
		return fmt.Sprintf("SortOrder(%d)", int(s))
	}
	return sortNames[s]
}

// Next is the order after s, wrapping around.
func (s SortOrder) Next() SortOrder {
	return (s + 1) % SortOrder(len(sortNames))
}

// ParseSort reads a sort name as printed by String.
func ParseSort(s string) (SortOrder, error) {
	for i, name := range sortNames {
		if s == name {
			return SortOrder(i), nil
		}
	}
	return SortNewest, fmt.Errorf("unknown sort %q, expected one of %v", s, sortNames)
}

// Filter keeps the records matching mode, in their original order. State
// matching is exact: only "Open" and "Closed" are recognised.
func Filter[T Record](xs []T, mode FilterMode) []T {
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		switch mode {
		case FilterOpen:
			if x.GetState() != "Open" {
				continue
			}
		case FilterClosed:
			if x.GetState() != "Closed" {
				continue
			}
		}
		out = append(out, x)
	}
	return out
}

// Sort returns a sorted copy of xs. Records that compare equal keep their
// relative order.
func Sort[T Record](xs []T, order SortOrder) []T {
	out := slices.Clone(xs)
	if out == nil {
		out = []T{}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		switch order {
		case SortOldest:
			return a.GetSubmitDate().Compare(b.GetSubmitDate())
		case SortMostComments:
			return cmp.Compare(b.GetCommentCount(), a.GetCommentCount())
		case SortLeastComments:
			return cmp.Compare(a.GetCommentCount(), b.GetCommentCount())
		default:
			return b.GetSubmitDate().Compare(a.GetSubmitDate())
		}
	})
	return out
}

type titles[T Record] []T

func (t titles[T]) String(i int) string { return t[i].GetTitle() }
func (t titles[T]) Len() int            { return len(t) }

// Search keeps the records whose title fuzzily matches pattern, in their
// original order. An empty pattern keeps everything.
func Search[T Record](xs []T, pattern string) []T {
	if pattern == "" {
		return slices.Clone(xs)
	}

	matches := fuzzy.FindFrom(pattern, titles[T](xs))
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		idx = append(idx, m.Index)
	}
	slices.Sort(idx)

	out := make([]T, 0, len(idx))
	for _, i := range idx {
		out = append(out, xs[i])
	}
	return out
}

// View is everything the user chose about how to display a list.
type View struct {
	Filter FilterMode
	Sort   SortOrder
	Search string
}

// Apply filters, then searches, then sorts.
func Apply[T Record](xs []T, v View) []T {
	return Sort(Search(Filter(xs, v.Filter), v.Search), v.Sort)
}
