package roster

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"roster/internal/student"
)

type memKV struct{ data map[string][]byte }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

// failingAdapter fails every call with err.
type failingAdapter struct{ err error }

func (f failingAdapter) Mode() student.Mode { return student.ModeRemote }
func (f failingAdapter) List(context.Context) ([]student.Record, error) {
	return nil, f.err
}
func (f failingAdapter) Create(context.Context, student.Draft) (student.Record, error) {
	return student.Record{}, f.err
}
func (f failingAdapter) Update(context.Context, string, student.Patch) (student.Record, error) {
	return student.Record{}, f.err
}
func (f failingAdapter) Delete(context.Context, string) (json.RawMessage, error) {
	return nil, f.err
}

func newLocalAdapter() *student.Local {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return student.NewLocal(&memKV{data: map[string][]byte{}}, student.LocalOptions{Now: clock})
}

func newLocalController() *Controller {
	return NewController(newLocalAdapter())
}

// gatedAdapter reads the list, signals listed, then holds the result until
// release is closed.
type gatedAdapter struct {
	student.Adapter
	listed  chan struct{}
	release chan struct{}
}

func (g *gatedAdapter) List(ctx context.Context) ([]student.Record, error) {
	list, err := g.Adapter.List(ctx)
	close(g.listed)
	<-g.release
	return list, err
}

func TestControllerReconciles(t *testing.T) {
	ctx := context.Background()
	c := newLocalController()
	if err := c.EnsureLoaded(ctx); err != nil {
		t.Fatal(err)
	}

	jane, err := c.Create(ctx, student.Draft{Name: "Jane Doe", Email: "jane@x.com", Course: "CS"})
	if err != nil {
		t.Fatal(err)
	}
	bob, err := c.Create(ctx, student.Draft{Name: "Bob", Email: "bob@x.com", Course: "Art", Status: "Pending"})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := c.Snapshot(View{})
	if err != nil {
		t.Fatal(err)
	}
	equalIDs(t, snap.Students, bob.ID, jane.ID)
	if snap.Stats != (Stats{Total: 2, Active: 1, Pending: 1}) {
		t.Fatalf("unexpected stats %+v", snap.Stats)
	}

	graduated := student.StatusGraduated
	if _, err := c.Update(ctx, jane.ID, student.Patch{Status: &graduated}); err != nil {
		t.Fatal(err)
	}
	snap, _ = c.Snapshot(View{Query: "grad"})
	equalIDs(t, snap.Students, jane.ID)

	if _, err := c.Delete(ctx, bob.ID); err != nil {
		t.Fatal(err)
	}
	snap, _ = c.Snapshot(View{Sort: SortName, Dir: Asc})
	equalIDs(t, snap.Students, jane.ID)

	// The in-memory list agrees with a fresh load.
	fresh, err := c.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	equalIDs(t, fresh, jane.ID)
	if fresh[0].Status != student.StatusGraduated {
		t.Fatalf("reload lost update: %+v", fresh[0])
	}
}

func TestControllerUpdateNotFound(t *testing.T) {
	c := newLocalController()
	name := "x"
	_, err := c.Update(context.Background(), "missing", student.Patch{Name: &name})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var oerr *OpError
	if !errors.As(err, &oerr) || oerr.Message != MsgSaveFailed {
		t.Fatalf("expected save failure, got %v", err)
	}
	snap, _ := c.Snapshot(View{})
	if snap.Error != MsgSaveFailed {
		t.Fatalf("expected last error %q, got %q", MsgSaveFailed, snap.Error)
	}
}

func TestControllerFailureMessages(t *testing.T) {
	ctx := context.Background()
	c := NewController(failingAdapter{err: &student.AdapterError{Op: "list", Status: 500, Message: "boom"}})

	if _, err := c.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	snap, _ := c.Snapshot(View{})
	if snap.Error != MsgLoadFailed || len(snap.Students) != 0 || snap.Loading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if err := c.EnsureLoaded(ctx); err == nil {
		t.Fatal("EnsureLoaded should retry and fail")
	}

	_, err := c.Delete(ctx, "a")
	var oerr *OpError
	if !errors.As(err, &oerr) || oerr.Message != MsgDeleteFailed {
		t.Fatalf("expected delete failure, got %v", err)
	}
	if IsNotFound(err) {
		t.Fatal("500 is not a not-found")
	}
}

func TestControllerSnapshotWhere(t *testing.T) {
	ctx := context.Background()
	c := newLocalController()
	_, _ = c.Create(ctx, student.Draft{Name: "A", Course: "CS"})
	b, _ := c.Create(ctx, student.Draft{Name: "B", Course: "Math"})

	p, err := CompileWhere(`course == "Math"`)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.Snapshot(View{Where: p})
	if err != nil {
		t.Fatal(err)
	}
	equalIDs(t, snap.Students, b.ID)
	if snap.Stats.Total != 2 {
		t.Fatalf("stats should cover the full list, got %+v", snap.Stats)
	}
}

func TestControllerReloadKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	local := newLocalAdapter()
	kept, err := local.Create(ctx, student.Draft{Name: "Kept"})
	if err != nil {
		t.Fatal(err)
	}
	gone, err := local.Create(ctx, student.Draft{Name: "Gone"})
	if err != nil {
		t.Fatal(err)
	}

	g := &gatedAdapter{Adapter: local, listed: make(chan struct{}), release: make(chan struct{})}
	c := NewController(g)
	done := make(chan error, 1)
	go func() {
		_, err := c.Reload(ctx)
		done <- err
	}()
	<-g.listed

	jane, err := c.Create(ctx, student.Draft{Name: "Jane"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Delete(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}
	if snap, _ := c.Snapshot(View{}); !snap.Loading {
		t.Fatal("expected loading while the reload is in flight")
	}

	close(g.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	snap, _ := c.Snapshot(View{Sort: SortName, Dir: Asc})
	equalIDs(t, snap.Students, jane.ID, kept.ID)
	if snap.Loading {
		t.Fatal("loading should clear after the reload")
	}
}

func TestControllerCreateConflict(t *testing.T) {
	ctx := context.Background()
	c := newLocalController()
	a, err := c.Create(ctx, student.Draft{Name: "A"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Create(ctx, student.Draft{ID: a.ID, Name: "B"})
	if !IsConflict(err) || IsNotFound(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	snap, _ := c.Snapshot(View{})
	equalIDs(t, snap.Students, a.ID)
}
