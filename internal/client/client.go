// Package client is a Go client for the ragd REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	api "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/fyrsmithlabs/ragd/internal/rag"
)

// DefaultBaseURL is the daemon's default listen address.
const DefaultBaseURL = "http://localhost:8000"

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	// State is the pipeline state a failed query ended in, if reported.
	State string
}

func (e *APIError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("ragd: %d %s (%s)", e.StatusCode, e.Message, e.State)
	}
	return fmt.Sprintf("ragd: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the /api/v1 endpoints.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the daemon at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + "/api/v1" + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError reads an echo error body: {"message": "..."} or
// {"message": {"message": "...", "state": "..."}}.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) != nil || len(envelope.Message) == 0 {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	var text string
	if json.Unmarshal(envelope.Message, &text) == nil {
		apiErr.Message = text
		return apiErr
	}
	var detail struct {
		Message string `json:"message"`
		State   string `json:"state"`
	}
	if json.Unmarshal(envelope.Message, &detail) == nil {
		apiErr.Message, apiErr.State = detail.Message, detail.State
	}
	return apiErr
}

// Health returns the service health summary.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	return &out, c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
}

// Upload sends the file at path for ingestion.
func (c *Client) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/documents/upload", nil), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.UploadResponse
	if err := c.send(req, &out); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return &out, nil
}

// Status returns the processing status of a document.
func (c *Client) Status(ctx context.Context, id string) (*ingest.ProcessingStatus, error) {
	var out ingest.ProcessingStatus
	return &out, c.do(ctx, http.MethodGet, "/documents/status/"+url.PathEscape(id), nil, nil, &out)
}

// WaitForStatus polls until the document reaches a terminal status or ctx
// ends. onUpdate, if set, sees every polled status.
func (c *Client) WaitForStatus(ctx context.Context, id string, interval time.Duration, onUpdate func(*ingest.ProcessingStatus)) (*ingest.ProcessingStatus, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(st)
		}
		if st.Status.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Documents lists indexed documents.
func (c *Client) Documents(ctx context.Context) (*api.DocumentsResponse, error) {
	var out api.DocumentsResponse
	return &out, c.do(ctx, http.MethodGet, "/documents/list-unique", nil, nil, &out)
}

// Chunks returns the stored chunks of a document.
func (c *Client) Chunks(ctx context.Context, id string) (*api.ChunksResponse, error) {
	var out api.ChunksResponse
	return &out, c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id)+"/chunks", nil, nil, &out)
}

// Delete removes a document and its chunks.
func (c *Client) Delete(ctx context.Context, id string) (*api.MessageResponse, error) {
	var out api.MessageResponse
	return &out, c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil, &out)
}

// Reset drops every document.
func (c *Client) Reset(ctx context.Context) (*api.MessageResponse, error) {
	var out api.MessageResponse
	return &out, c.do(ctx, http.MethodPost, "/documents/reset", nil, nil, &out)
}

// Query asks a question.
func (c *Client) Query(ctx context.Context, req rag.QueryRequest) (*rag.QueryResponse, error) {
	var out rag.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the last limit answered queries.
func (c *Client) History(ctx context.Context, limit int) (*api.HistoryResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.HistoryResponse
	return &out, c.do(ctx, http.MethodGet, "/query/history", q, nil, &out)
}

// Summary summarizes one document.
func (c *Client) Summary(ctx context.Context, id string) (*rag.DocumentSummary, error) {
	var out rag.DocumentSummary
	return &out, c.do(ctx, http.MethodGet, "/query/document/"+url.PathEscape(id)+"/summary", nil, nil, &out)
}
