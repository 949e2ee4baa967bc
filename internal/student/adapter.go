package student

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Mode names the backend an Adapter talks to.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Adapter is the four-operation persistence surface shared by both modes.
type Adapter interface {
	Mode() Mode
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, d Draft) (Record, error)
	Update(ctx context.Context, id string, p Patch) (Record, error)
	Delete(ctx context.Context, id string) (json.RawMessage, error)
}

// KV is the durable key-value store local mode keeps its collection in.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Options configures New.
type Options struct {
	// Endpoint is the remote backend base URL. Empty selects local mode.
	Endpoint string
	// Token is sent as a bearer token to the remote backend when set.
	Token string
	// Timeout bounds each remote request. Zero means no timeout.
	Timeout time.Duration

	Store         KV
	Latency       time.Duration
	DeleteLatency time.Duration
	Now           func() time.Time
}

// New picks the adapter once from opts: remote when an endpoint is
// configured, local otherwise.
func New(opts Options) (Adapter, error) {
	if opts.Endpoint != "" {
		return NewRemote(opts.Endpoint, opts.Token, opts.Timeout), nil
	}
	if opts.Store == nil {
		return nil, errors.New("student: local mode requires a store")
	}
	return NewLocal(opts.Store, LocalOptions{
		Latency:       opts.Latency,
		DeleteLatency: opts.DeleteLatency,
		Now:           opts.Now,
	}), nil
}
