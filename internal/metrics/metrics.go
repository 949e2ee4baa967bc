// Package metrics instruments adapter calls and change-feed processing
// with Prometheus collectors.
package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"roster/internal/student"
)

// Collectors groups the adapter metrics so tests can use a private
// registry.
type Collectors struct {
	Ops      *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewCollectors creates and registers the adapter collectors on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "adapter_operations_total",
			Help:      "Persistence adapter calls by operation, mode and result.",
		}, []string{"op", "mode", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Name:      "adapter_operation_seconds",
			Help:      "Persistence adapter call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "mode"}),
	}
	reg.MustRegister(c.Ops, c.Duration)
	return c
}

// NewEvents creates and registers the change-feed counter the worker
// increments per consumed message type.
func NewEvents(reg prometheus.Registerer) *prometheus.CounterVec {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Name:      "change_events_total",
		Help:      "Change-feed messages consumed by type.",
	}, []string{"type"})
	reg.MustRegister(events)
	return events
}

// Instrument wraps a so every call is counted and timed.
func (c *Collectors) Instrument(a student.Adapter) student.Adapter {
	return &instrumented{next: a, c: c, mode: string(a.Mode())}
}

type instrumented struct {
	next student.Adapter
	c    *Collectors
	mode string
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.c.Ops.WithLabelValues(op, i.mode, result).Inc()
	i.c.Duration.WithLabelValues(op, i.mode).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Mode() student.Mode { return i.next.Mode() }

func (i *instrumented) List(ctx context.Context) ([]student.Record, error) {
	start := time.Now()
	out, err := i.next.List(ctx)
	i.observe("list", start, err)
	return out, err
}

func (i *instrumented) Create(ctx context.Context, d student.Draft) (student.Record, error) {
	start := time.Now()
	rec, err := i.next.Create(ctx, d)
	i.observe("create", start, err)
	return rec, err
}

func (i *instrumented) Update(ctx context.Context, id string, p student.Patch) (student.Record, error) {
	start := time.Now()
	rec, err := i.next.Update(ctx, id, p)
	i.observe("update", start, err)
	return rec, err
}

func (i *instrumented) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	start := time.Now()
	ack, err := i.next.Delete(ctx, id)
	i.observe("delete", start, err)
	return ack, err
}
