package record

import (
	"slices"
	"strings"
	"time"
)

// Query narrows a listed collection.
//   - Tag keeps records carrying the tag, compared case-insensitively and exactly.
//   - Search keeps records whose title or any tag contains the term, case-insensitively.
type Query struct {
	Tag    string
	Search string
}

// Apply filters records and orders the result newest first. The input slice
// is not modified and the result is never nil.
func (q Query) Apply(records []Record) []Record {
	tag := strings.ToLower(strings.TrimSpace(q.Tag))
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if tag != "" && !hasTag(r, tag) {
			continue
		}
		if term != "" && !matches(r, term) {
			continue
		}
		out = append(out, r)
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records by CreatedAt descending, keeping the stored
// order between equal timestamps.
func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return compareTime(b.CreatedAt, a.CreatedAt)
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func hasTag(r Record, lowered string) bool {
	for _, t := range r.Tags {
		if strings.ToLower(t) == lowered {
			return true
		}
	}
	return false
}

func matches(r Record, lowered string) bool {
	if strings.Contains(strings.ToLower(r.Title), lowered) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), lowered) {
			return true
		}
	}
	return false
}
