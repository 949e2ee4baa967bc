package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"roster/internal/student"
)

type memKV map[string][]byte

func (m memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) Set(_ context.Context, key string, value []byte) error {
	m[key] = value
	return nil
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	c := NewCollectors(prometheus.NewRegistry())
	a := c.Instrument(student.NewLocal(memKV{}, student.LocalOptions{}))

	if a.Mode() != student.ModeLocal {
		t.Fatalf("mode not forwarded: %s", a.Mode())
	}
	rec, err := a.Create(ctx, student.Draft{Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.List(ctx); err != nil {
		t.Fatal(err)
	}
	name := "B"
	if _, err := a.Update(ctx, "missing", student.Patch{Name: &name}); err == nil {
		t.Fatal("expected not found")
	}
	if _, err := a.Delete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		op, result string
		want       float64
	}{
		{"create", "ok", 1},
		{"list", "ok", 1},
		{"update", "error", 1},
		{"update", "ok", 0},
		{"delete", "ok", 1},
	}
	for _, tc := range checks {
		got := testutil.ToFloat64(c.Ops.WithLabelValues(tc.op, "local", tc.result))
		if got != tc.want {
			t.Errorf("%s/%s: got %v, want %v", tc.op, tc.result, got, tc.want)
		}
	}
	if n := testutil.CollectAndCount(c.Duration); n != 4 {
		t.Fatalf("expected 4 duration series, got %d", n)
	}
}

func TestRegistriesStaySeparate(t *testing.T) {
	reg := prometheus.NewRegistry()
	events := NewEvents(reg)
	events.WithLabelValues("student.created").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 1 || families[0].GetName() != "roster_change_events_total" {
		t.Fatalf("worker registry should only carry the event counter, got %d families", len(families))
	}
	// The adapter collectors can share a registry with the event counter.
	NewCollectors(reg)
}
