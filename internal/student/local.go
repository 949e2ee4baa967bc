package student

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// StorageKey is the namespace the local collection is stored under.
const StorageKey = "sms_students_v1"

// LocalOptions tunes the local adapter.
type LocalOptions struct {
	// Latency is the artificial delay for list, create and update.
	Latency time.Duration
	// DeleteLatency is the artificial delay for delete.
	DeleteLatency time.Duration
	Now           func() time.Time
}

// Local keeps the whole collection as one JSON array in a KV store.
// Creates prepend, so the stored order is newest first.
type Local struct {
	kv   KV
	opts LocalOptions

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewLocal creates a local-mode adapter over kv.
func NewLocal(kv KV, opts LocalOptions) *Local {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Local{kv: kv, opts: opts}
}

func (l *Local) Mode() Mode { return ModeLocal }

// List returns the stored collection. Unreadable or corrupted storage reads
// as an empty collection.
func (l *Local) List(ctx context.Context) ([]Record, error) {
	if err := wait(ctx, "list", l.opts.Latency); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx), nil
}

// Create normalizes d, prepends it and persists the collection. A given id
// that is already stored is rejected.
func (l *Local) Create(ctx context.Context, d Draft) (Record, error) {
	if err := wait(ctx, "create", l.opts.Latency); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := l.read(ctx)
	if d.ID != "" && indexOf(stored, d.ID) != -1 {
		return Record{}, duplicateID("create", d.ID)
	}
	rec := newRecord(d, l.opts.Now())
	all := append([]Record{rec}, stored...)
	if err := l.write(ctx, "create", all); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update merges p onto the record with id and refreshes updatedAt.
func (l *Local) Update(ctx context.Context, id string, p Patch) (Record, error) {
	if err := wait(ctx, "update", l.opts.Latency); err != nil {
		return Record{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.read(ctx)
	idx := indexOf(all, id)
	if idx == -1 {
		return Record{}, notFound("update")
	}
	updated := p.Apply(all[idx])
	updated.UpdatedAt = At(l.opts.Now())
	if updated.UpdatedAt.Before(updated.CreatedAt.Time) {
		updated.UpdatedAt = updated.CreatedAt
	}
	all[idx] = updated
	if err := l.write(ctx, "update", all); err != nil {
		return Record{}, err
	}
	return updated, nil
}

var deleteAck = json.RawMessage(`{"success":true}`)

// Delete removes the record with id. Deleting an unknown id is not an error.
func (l *Local) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	if err := wait(ctx, "delete", l.opts.DeleteLatency); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.read(ctx)
	rest := all[:0]
	for _, r := range all {
		if r.ID != id {
			rest = append(rest, r)
		}
	}
	if err := l.write(ctx, "delete", rest); err != nil {
		return nil, err
	}
	return deleteAck, nil
}

func (l *Local) read(ctx context.Context) []Record {
	raw, ok, err := l.kv.Get(ctx, StorageKey)
	if err != nil || !ok || len(raw) == 0 {
		return []Record{}
	}
	var all []Record
	if err := json.Unmarshal(raw, &all); err != nil || all == nil {
		return []Record{}
	}
	return all
}

func (l *Local) write(ctx context.Context, op string, all []Record) error {
	data, err := json.Marshal(all)
	if err != nil {
		return wrapError(op, err)
	}
	if err := l.kv.Set(ctx, StorageKey, data); err != nil {
		return wrapError(op, err)
	}
	return nil
}

func indexOf(all []Record, id string) int {
	for i, r := range all {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func wait(ctx context.Context, op string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return wrapError(op, ctx.Err())
	}
}
