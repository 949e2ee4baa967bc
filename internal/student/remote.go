package student

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote talks to a JSON/HTTP backend exposing /students.
type Remote struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewRemote creates a remote-mode adapter. A zero timeout leaves requests
// unbounded apart from the caller's context.
func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	return &Remote{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *Remote) Mode() Mode { return ModeRemote }

// List fetches GET /students. Order is whatever the backend returns.
func (c *Remote) List(ctx context.Context) ([]Record, error) {
	var out struct {
		Students []Record `json:"students"`
	}
	if err := c.do(ctx, "list", http.MethodGet, "/students", nil, &out); err != nil {
		return nil, err
	}
	if out.Students == nil {
		return []Record{}, nil
	}
	return out.Students, nil
}

// Create forwards d unchanged to POST /students.
func (c *Remote) Create(ctx context.Context, d Draft) (Record, error) {
	var out envelope
	if err := c.do(ctx, "create", http.MethodPost, "/students", d, &out); err != nil {
		return Record{}, err
	}
	return out.record("create")
}

// Update forwards p to PUT /students/{id}.
func (c *Remote) Update(ctx context.Context, id string, p Patch) (Record, error) {
	var out envelope
	if err := c.do(ctx, "update", http.MethodPut, "/students/"+url.PathEscape(id), p, &out); err != nil {
		return Record{}, err
	}
	return out.record("update")
}

// envelope is the {"student": ...} body of create and update responses.
type envelope struct {
	Student *Record `json:"student"`
}

func (e envelope) record(op string) (Record, error) {
	if e.Student == nil {
		return Record{}, &AdapterError{Op: op, Message: op + ": invalid response: missing student", Err: errInvalidResponse}
	}
	return *e.Student, nil
}

// Delete issues DELETE /students/{id} and returns the backend's body.
func (c *Remote) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "delete", http.MethodDelete, "/students/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Remote) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return wrapError(op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, join(c.BaseURL, path), reader)
	if err != nil {
		return wrapError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return wrapError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, string(data))
	}
	if !json.Valid(data) {
		return &AdapterError{Op: op, Status: resp.StatusCode, Message: op + ": invalid JSON response", Err: errInvalidJSON}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return wrapError(op, err)
	}
	return nil
}

var (
	errInvalidJSON     = errors.New("invalid JSON response")
	errInvalidResponse = errors.New("invalid response")
)

// join concatenates base and path with exactly one slash between them.
func join(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
