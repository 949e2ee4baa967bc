package student

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recommended status values. Any other string is accepted.
const (
	StatusActive    = "Active"
	StatusPending   = "Pending"
	StatusGraduated = "Graduated"
	StatusInactive  = "Inactive"
)

// Record is a single student entry.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Course    string    `json:"course"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`

	// Extra holds fields beyond the ones above, as a remote backend sent
	// them. They are written back out unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var recordKeys = map[string]bool{
	"id": true, "name": true, "email": true, "course": true,
	"status": true, "createdAt": true, "updatedAt": true,
}

func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	data, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}
	fields := make(map[string]json.RawMessage, len(r.Extra)+len(recordKeys))
	for k, v := range r.Extra {
		fields[k] = v
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k := range fields {
		if recordKeys[k] {
			delete(fields, k)
		}
	}
	p.Extra = nil
	if len(fields) > 0 {
		p.Extra = fields
	}
	*r = Record(p)
	return nil
}

// Draft is the create payload. ID is optional.
type Draft struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Course string `json:"course,omitempty"`
	Status string `json:"status,omitempty"`
}

// Patch is the update payload. Nil fields are left untouched.
type Patch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Course *string `json:"course,omitempty"`
	Status *string `json:"status,omitempty"`
}

// Apply merges the set fields of p onto r.
func (p Patch) Apply(r Record) Record {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Email != nil {
		r.Email = *p.Email
	}
	if p.Course != nil {
		r.Course = *p.Course
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

// Empty reports whether no field is set.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Course == nil && p.Status == nil
}

// newRecord normalizes a draft into a stored record stamped at now.
func newRecord(d Draft, now time.Time) Record {
	id := d.ID
	if id == "" {
		id = NewID(now)
	}
	status := strings.TrimSpace(d.Status)
	if status == "" {
		status = StatusActive
	}
	ts := At(now)
	return Record{
		ID:        id,
		Name:      strings.TrimSpace(d.Name),
		Email:     strings.TrimSpace(d.Email),
		Course:    strings.TrimSpace(d.Course),
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// NewID returns "<unix millis>_<6 char suffix>".
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is an ISO-8601 instant with millisecond precision. Decoded
// values keep their original text, which is what gets written back out;
// values that do not parse still compare as the zero time.
type Timestamp struct {
	time.Time
	raw string
}

// At returns the timestamp for t, in UTC and truncated to milliseconds.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

func (ts Timestamp) String() string {
	if ts.raw != "" || ts.Time.IsZero() {
		return ts.raw
	}
	return ts.Time.Format(isoLayout)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if string(data) == "null" {
		*ts = Timestamp{}
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		*ts = Timestamp{raw: s}
		return nil
	}
	*ts = Timestamp{Time: t.UTC(), raw: s}
	return nil
}
