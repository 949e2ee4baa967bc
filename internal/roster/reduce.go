package roster

import (
	"slices"
	"strings"

	"roster/internal/student"
)

// Prepend returns list with rec placed first.
func Prepend(list []student.Record, rec student.Record) []student.Record {
	out := make([]student.Record, 0, len(list)+1)
	out = append(out, rec)
	return append(out, list...)
}

// Replace returns list with the entry sharing rec's id swapped for rec.
// The list is returned unchanged when no entry matches.
func Replace(list []student.Record, rec student.Record) []student.Record {
	out := make([]student.Record, len(list))
	for i, r := range list {
		if r.ID == rec.ID {
			r = rec
		}
		out[i] = r
	}
	return out
}

// Upsert replaces the entry sharing rec's id, or prepends rec when there is
// none. Applying it twice gives the same list.
func Upsert(list []student.Record, rec student.Record) []student.Record {
	for _, r := range list {
		if r.ID == rec.ID {
			return Replace(list, rec)
		}
	}
	return Prepend(list, rec)
}

// Remove returns list without entries whose id is id.
func Remove(list []student.Record, id string) []student.Record {
	out := make([]student.Record, 0, len(list))
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// Filter keeps records where any of name, email, course or status contains
// query, case-insensitively. A blank query keeps everything.
func Filter(list []student.Record, query string) []student.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}
	out := make([]student.Record, 0, len(list))
	for _, r := range list {
		for _, f := range []string{r.Name, r.Email, r.Course, r.Status} {
			if f != "" && strings.Contains(strings.ToLower(f), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// SortKey is a sortable column.
type SortKey string

const (
	SortName      SortKey = "name"
	SortEmail     SortKey = "email"
	SortCourse    SortKey = "course"
	SortStatus    SortKey = "status"
	SortCreatedAt SortKey = "createdAt"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSortKey reports whether s names a sortable column.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortName, SortEmail, SortCourse, SortStatus, SortCreatedAt:
		return k, true
	}
	return "", false
}

func sortValue(r student.Record, key SortKey) string {
	switch key {
	case SortName:
		return r.Name
	case SortEmail:
		return r.Email
	case SortCourse:
		return r.Course
	case SortStatus:
		return r.Status
	default:
		return r.CreatedAt.String()
	}
}

// Sort returns a stably sorted copy, comparing lower-cased column text.
func Sort(list []student.Record, key SortKey, dir Direction) []student.Record {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b student.Record) int {
		c := strings.Compare(strings.ToLower(sortValue(a, key)), strings.ToLower(sortValue(b, key)))
		if dir == Desc {
			return -c
		}
		return c
	})
	return out
}

// Stats counts records by the statuses the summary cards show.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Graduated int `json:"graduated"`
	Pending   int `json:"pending"`
}

// Summarize computes Stats, matching statuses case-insensitively.
func Summarize(list []student.Record) Stats {
	s := Stats{Total: len(list)}
	for _, r := range list {
		switch strings.ToLower(r.Status) {
		case "active":
			s.Active++
		case "graduated":
			s.Graduated++
		case "pending":
			s.Pending++
		}
	}
	return s
}
