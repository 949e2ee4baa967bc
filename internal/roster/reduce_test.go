package roster

import (
	"testing"
	"time"

	"roster/internal/student"
)

func rec(id, name, email, course, status string, created time.Time) student.Record {
	return student.Record{
		ID: id, Name: name, Email: email, Course: course, Status: status,
		CreatedAt: student.At(created), UpdatedAt: student.At(created),
	}
}

func ids(list []student.Record) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}

func equalIDs(t *testing.T, got []student.Record, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got ids %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("got ids %v, want %v", g, want)
		}
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample() []student.Record {
	return []student.Record{
		rec("c", "carol", "carol@uni.edu", "History", "Pending", base.Add(2*time.Hour)),
		rec("a", "Alice", "alice@uni.edu", "CS", "Active", base),
		rec("b", "bob", "bob@mail.com", "cs", "graduated", base.Add(time.Hour)),
	}
}

func TestReducers(t *testing.T) {
	list := sample()

	equalIDs(t, Prepend(list, rec("d", "Dan", "", "", "", base)), "d", "c", "a", "b")
	equalIDs(t, Remove(list, "a"), "c", "b")
	equalIDs(t, Remove(list, "zzz"), "c", "a", "b")
	equalIDs(t, Upsert(list, rec("d", "Dan", "", "", "", base)), "d", "c", "a", "b")
	if up := Upsert(list, rec("a", "Al", "", "", "", base)); len(up) != 3 || up[1].Name != "Al" {
		t.Fatalf("Upsert of a known id should replace in place: %+v", up)
	}

	renamed := list[1]
	renamed.Name = "Alicia"
	replaced := Replace(list, renamed)
	if replaced[1].Name != "Alicia" || list[1].Name != "Alice" {
		t.Fatalf("Replace must not mutate its input: %+v / %+v", replaced[1], list[1])
	}
	equalIDs(t, Replace(list, rec("ghost", "", "", "", "", base)), "c", "a", "b")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"c", "a", "b"}},
		{"  CS ", []string{"a", "b"}},
		{"uni.edu", []string{"c", "a"}},
		{"GRAD", []string{"b"}},
		{"nobody", nil},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			equalIDs(t, Filter(sample(), tc.query), tc.want...)
		})
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		key  SortKey
		dir  Direction
		want []string
	}{
		{SortName, Asc, []string{"a", "b", "c"}},
		{SortName, Desc, []string{"c", "b", "a"}},
		{SortCreatedAt, Desc, []string{"c", "b", "a"}},
		{SortCreatedAt, Asc, []string{"a", "b", "c"}},
		{SortCourse, Asc, []string{"a", "b", "c"}},
		{SortStatus, Asc, []string{"a", "b", "c"}},
	}
	for _, tc := range tests {
		t.Run(string(tc.key)+"/"+string(tc.dir), func(t *testing.T) {
			equalIDs(t, Sort(sample(), tc.key, tc.dir), tc.want...)
		})
	}
}

func TestParseSortKey(t *testing.T) {
	if k, ok := ParseSortKey("email"); !ok || k != SortEmail {
		t.Fatalf("expected email, got %q %v", k, ok)
	}
	if _, ok := ParseSortKey("id"); ok {
		t.Fatal("id is not sortable")
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(append(sample(), rec("e", "", "", "", "Inactive", base)))
	want := Stats{Total: 4, Active: 1, Graduated: 1, Pending: 1}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
