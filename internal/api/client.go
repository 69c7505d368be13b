// Package api is the client of the upstream expenses API: the service that
// records expenses from the chat bot and exposes them over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gastos/internal/backend"
	"gastos/internal/core"
)

const maxResponseBytes = 16 << 20

// Ensure interface conformance
var (
	_ backend.TransactionLister  = (*Client)(nil)
	_ backend.TransactionUpdater = (*Client)(nil)
	_ backend.TransactionDeleter = (*Client)(nil)
	_ backend.CSVExporter        = (*Client)(nil)
	_ backend.Pinger             = (*Client)(nil)
)

type Client struct {
	baseURL string
	http    *http.Client
	loc     *time.Location
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocation sets the zone naive upstream timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// WithLogger sets the logger used for dropped records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClientWithPooling(timeout),
		loc:     time.UTC,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling and
// bounded timeouts for the upstream API.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: upstream returned %d", e.Op, e.StatusCode)
}

// Unwrap maps 404 to core.ErrNotFound and everything else to core.ErrUpstream.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return core.ErrNotFound
	}
	return core.ErrUpstream
}

// ListTransactions fetches every transaction of userID. Records that cannot
// be decoded are logged and skipped.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, core.ErrInvalidUserID
	}

	resp, err := c.do(ctx, http.MethodGet, "/api/expenses/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("list expenses", resp); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode expenses: %w: %v", core.ErrUpstream, err)
	}

	out := make([]core.Transaction, 0, len(raw))
	dropped := 0
	for i, msg := range raw {
		t, err := decodeExpense(msg, c.loc)
		if err != nil {
			dropped++
			c.logger.WarnContext(ctx, "Skipping malformed expense",
				"component", "upstream", "user_id", userID, "index", i, "error", err)
			continue
		}
		out = append(out, t)
	}
	if dropped > 0 {
		c.logger.InfoContext(ctx, "Fetched expenses with skipped records",
			"component", "upstream", "user_id", userID, "count", len(out), "dropped", dropped)
	}
	return out, nil
}

// UpdateTransaction replaces the amount and payment method of expense id.
func (c *Client) UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/api/expenses/"+url.PathEscape(id), body)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	defer resp.Body.Close()
	return checkStatus("update expense "+id, resp)
}

// DeleteTransaction deletes expense id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	resp, err := c.do(ctx, http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	defer resp.Body.Close()
	return checkStatus("delete expense "+id, resp)
}

// ExportCSV opens the upstream CSV export. The caller closes Body.
func (c *Client) ExportCSV(ctx context.Context) (*backend.Export, error) {
	resp, err := c.do(ctx, http.MethodGet, "/export", nil)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := checkStatus("export", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	filename := "gastos.csv"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &backend.Export{Filename: filename, Body: resp.Body}, nil
}

// Ping checks that the upstream answers at all. Any status below 500 means
// the service is up.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("ping upstream: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 500 {
		return &StatusError{Op: "ping", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	return resp, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(resp.Body)}
}

// errorDetail extracts FastAPI-style {"detail": "..."} bodies, falling back
// to the first line of the raw body.
func errorDetail(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 4<<10))
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}
