// Package roster owns the displayed student list and reconciles adapter
// results into it without refetching.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"roster/internal/student"
)

// User-facing failure messages.
const (
	MsgLoadFailed   = "Failed to load students"
	MsgSaveFailed   = "Save failed"
	MsgDeleteFailed = "Delete failed"
)

// OpError pairs a user-facing message with the adapter error behind it.
type OpError struct {
	Message string
	Err     error
}

func (e *OpError) Error() string { return e.Message + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// Controller is the single owner of the in-memory record list.
type Controller struct {
	adapter student.Adapter

	mu      sync.RWMutex
	records []student.Record
	loaded  bool
	lastErr string

	// inflight counts running reloads. Mutations that finish meanwhile are
	// kept in replays and re-applied to each reloaded list.
	inflight int
	replays  []func([]student.Record) []student.Record
	// started and applied number reloads so an older result never
	// replaces a newer one.
	started uint64
	applied uint64
}

// NewController wraps an adapter. The list is empty until Reload.
func NewController(a student.Adapter) *Controller {
	return &Controller{adapter: a, records: []student.Record{}}
}

// Mode reports the adapter's backend.
func (c *Controller) Mode() student.Mode { return c.adapter.Mode() }

// Reload replaces the list with the adapter's. On failure the previous list
// is kept. Creates, updates and deletes that finish while the list is being
// fetched are applied on top of it.
func (c *Controller) Reload(ctx context.Context) ([]student.Record, error) {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.inflight++
	c.lastErr = ""
	c.mu.Unlock()

	list, err := c.adapter.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	replays := c.replays
	c.inflight--
	if c.inflight == 0 {
		c.replays = nil
	}
	if err != nil {
		c.lastErr = MsgLoadFailed
		return nil, &OpError{Message: MsgLoadFailed, Err: err}
	}
	if list == nil {
		list = []student.Record{}
	}
	for _, fn := range replays {
		list = fn(list)
	}
	if seq < c.applied {
		return c.records, nil
	}
	c.applied = seq
	c.records = list
	c.loaded = true
	return list, nil
}

// EnsureLoaded reloads once, the first time it is called successfully.
func (c *Controller) EnsureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := c.Reload(ctx)
	return err
}

// Create persists d and prepends the result.
func (c *Controller) Create(ctx context.Context, d student.Draft) (student.Record, error) {
	rec, err := c.adapter.Create(ctx, d)
	if err != nil {
		return student.Record{}, c.fail(MsgSaveFailed, err)
	}
	c.apply(func(list []student.Record) []student.Record { return Upsert(list, rec) })
	return rec, nil
}

// Update persists p for id and swaps the result into the list.
func (c *Controller) Update(ctx context.Context, id string, p student.Patch) (student.Record, error) {
	rec, err := c.adapter.Update(ctx, id, p)
	if err != nil {
		return student.Record{}, c.fail(MsgSaveFailed, err)
	}
	c.apply(func(list []student.Record) []student.Record { return Replace(list, rec) })
	return rec, nil
}

// Delete removes id from the backend and then from the list.
func (c *Controller) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	ack, err := c.adapter.Delete(ctx, id)
	if err != nil {
		return nil, c.fail(MsgDeleteFailed, err)
	}
	c.apply(func(list []student.Record) []student.Record { return Remove(list, id) })
	return ack, nil
}

// apply runs fn on the list, and again on any reload still in flight.
func (c *Controller) apply(fn func([]student.Record) []student.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = fn(c.records)
	if c.inflight > 0 {
		c.replays = append(c.replays, fn)
	}
}

func (c *Controller) fail(msg string, err error) error {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	return &OpError{Message: msg, Err: err}
}

// View selects what Snapshot returns.
type View struct {
	Query string
	Where *Predicate
	Sort  SortKey
	Dir   Direction
}

// Snapshot is a read-only view of controller state.
type Snapshot struct {
	Students []student.Record `json:"students"`
	Stats    Stats            `json:"stats"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
}

// Snapshot filters and sorts a copy of the list. Stats cover the whole list.
func (c *Controller) Snapshot(v View) (Snapshot, error) {
	c.mu.RLock()
	all := c.records
	snap := Snapshot{Stats: Summarize(all), Loading: c.inflight > 0, Error: c.lastErr}
	c.mu.RUnlock()

	key, dir := v.Sort, v.Dir
	if key == "" {
		key, dir = SortCreatedAt, Desc
	}
	if dir == "" {
		dir = Asc
	}
	visible, err := Where(Filter(all, v.Query), v.Where)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Students = Sort(visible, key, dir)
	return snap, nil
}

// IsConflict reports whether err came from creating an id that is taken.
func IsConflict(err error) bool {
	var aerr *student.AdapterError
	if errors.As(err, &aerr) && aerr.Status == http.StatusConflict {
		return true
	}
	return errors.Is(err, student.ErrDuplicateID)
}

// IsNotFound reports whether err came from an update of an unknown id.
func IsNotFound(err error) bool {
	var aerr *student.AdapterError
	if errors.As(err, &aerr) && aerr.Status == http.StatusNotFound {
		return true
	}
	return errors.Is(err, student.ErrNotFound)
}
