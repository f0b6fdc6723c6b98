// Package client is a typed Go client for the notes REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody bounds how much of a non-JSON error response is kept.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int                   `json:"-"`
	Code       errs.Code             `json:"-"`
	Kind       string                `json:"error"`
	Message    string                `json:"message"`
	Details    []errs.FieldViolation `json:"details,omitempty"`
	Fields     map[string]any        `json:"fields,omitempty"`
	Path       string                `json:"path,omitempty"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s: %s", e.StatusCode, e.Kind, e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Path, d.Message)
	}
	return b.String()
}

// Is matches errs codes, so errors.Is(err, notes.ErrNotFound) works across
// the wire.
func (e *APIError) Is(target error) bool {
	var coded *errs.Error
	if t, ok := target.(*errs.Error); ok {
		coded = t
	}
	return coded != nil && coded.Code == e.Code
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client calls the notes API at a base URL such as
// http://localhost:4000 or http://localhost:4000/api/v1.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListOptions selects a page. Zero values use the server defaults.
type ListOptions struct {
	Page  int
	Limit int
	Sort  string
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", out.Status)
	}
	return nil
}

// List fetches one page of notes.
func (c *Client) List(ctx context.Context, opts ListOptions) (*notes.ListResult, error) {
	var out notes.ListResult
	if err := c.do(ctx, http.MethodGet, "/notes"+opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a note by id.
func (c *Client) Get(ctx context.Context, id string) (*notes.Note, error) {
	var out notes.Note
	if err := c.do(ctx, http.MethodGet, notePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a note.
func (c *Client) Create(ctx context.Context, in notes.CreateInput) (*notes.Note, error) {
	var out notes.Note
	if err := c.do(ctx, http.MethodPost, "/notes", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update applies a partial update. Nil fields are left unchanged.
func (c *Client) Update(ctx context.Context, id string, in notes.PatchInput) (*notes.Note, error) {
	var out notes.Note
	if err := c.do(ctx, http.MethodPatch, notePath(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a note.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, notePath(id), nil, nil)
}

func notePath(id string) string {
	return "/notes/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Kind == "" {
		apiErr.Kind = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = "Something went wrong"
		}
		apiErr.Code = codeForStatus(resp.StatusCode)
		return apiErr
	}
	apiErr.Code = errs.CodeForKind(apiErr.Kind)
	return apiErr
}

func codeForStatus(status int) errs.Code {
	switch status {
	case http.StatusBadRequest:
		return errs.Malformed
	case http.StatusNotFound:
		return errs.NotFound
	case http.StatusConflict:
		return errs.AlreadyExists
	case http.StatusTooManyRequests:
		return errs.ResourceExhausted
	case http.StatusRequestEntityTooLarge:
		return errs.TooLarge
	case http.StatusServiceUnavailable:
		return errs.Unavailable
	default:
		return errs.Internal
	}
}
