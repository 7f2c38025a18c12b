// Package storeclient talks to the Remote Student Store over HTTP.
//
// Contract:
//
//	GET    /students       → 200 [Student]
//	PUT    /students/{id}  → 200 Student, otherwise {"message": "..."}
//	DELETE /students/{id}  → any 2xx, body ignored
//
// Every call is a single attempt. No credentials travel with requests.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aanand-mishra/students-admin/internal/metrics"
	"github.com/aanand-mishra/students-admin/internal/types"
)

// Operation names, used in errors and as metric labels.
const (
	OpList   = "list"
	OpUpdate = "update"
	OpDelete = "delete"
)

// StatusError is returned when the store answers with a non-success status.
type StatusError struct {
	Op         string
	Status     int
	StatusText string
	// Message is the store's "message" field, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d - %s", e.Status, e.StatusText)
}

// Observer is told about every finished request.
type Observer interface {
	Observe(op, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, time.Duration) {}

// Client is a Remote Student Store client. It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithMetrics records each request on m.
func WithMetrics(m *metrics.Store) Option {
	return func(c *Client) {
		if m != nil {
			c.observer = m
		}
	}
}

// New returns a client for the store rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("storeclient.New: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storeclient.New: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:  u,
		http:     &http.Client{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// endpoint builds the collection or record URL. The id is a single path
// segment even when it contains '/' or '?'.
func (c *Client) endpoint(id string) string {
	u := *c.baseURL
	raw := u.EscapedPath() + "/students"
	u.Path += "/students"
	if id != "" {
		u.Path += "/" + id
		raw += "/" + url.PathEscape(id)
	}
	u.RawPath = raw
	return u.String()
}

// do sends req and records the outcome. The caller owns the response body.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.observer.Observe(op, metrics.OutcomeFailed, time.Since(start))
		return nil, fmt.Errorf("storeclient.%s: %w", op, err)
	}
	outcome := metrics.OutcomeOK
	if res.StatusCode < 200 || res.StatusCode > 299 {
		outcome = metrics.OutcomeRejected
	}
	c.observer.Observe(op, outcome, time.Since(start))
	return res, nil
}

func statusError(op string, res *http.Response) *StatusError {
	return &StatusError{
		Op:         op,
		Status:     res.StatusCode,
		StatusText: http.StatusText(res.StatusCode),
	}
}

// List fetches every student.
func (c *Client) List(ctx context.Context) ([]types.Student, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(""), nil)
	if err != nil {
		return nil, fmt.Errorf("storeclient.List: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.do(OpList, req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, statusError(OpList, res)
	}

	students := make([]types.Student, 0)
	if err := json.NewDecoder(res.Body).Decode(&students); err != nil {
		return nil, fmt.Errorf("storeclient.List: decode: %w", err)
	}
	return students, nil
}

// Update sends fields as the full update body for id and returns the
// store's representation of the record.
func (c *Client) Update(ctx context.Context, id string, fields map[string]any) (types.Student, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return types.Student{}, fmt.Errorf("storeclient.Update: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(id), bytes.NewReader(body))
	if err != nil {
		return types.Student{}, fmt.Errorf("storeclient.Update: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.do(OpUpdate, req)
	if err != nil {
		return types.Student{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		serr := statusError(OpUpdate, res)
		var payload struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload) == nil {
			serr.Message = payload.Message
		}
		return types.Student{}, serr
	}

	var student types.Student
	if err := json.NewDecoder(res.Body).Decode(&student); err != nil {
		return types.Student{}, fmt.Errorf("storeclient.Update: decode: %w", err)
	}
	return student, nil
}

// Delete removes id. Any 2xx status is success.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(id), nil)
	if err != nil {
		return fmt.Errorf("storeclient.Delete: build request: %w", err)
	}

	res, err := c.do(OpDelete, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(OpDelete, res)
	}
	return nil
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Status == status
}
