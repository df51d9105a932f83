// Package client is the Go data layer for the journal REST API. Callers
// re-fetch the list after a mutation; the client keeps no state.
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
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjournal/journal-engine/internal/model"
	"github.com/tjournal/journal-engine/internal/report"
	"github.com/tjournal/journal-engine/internal/tradelist"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("journal api: status %d", e.Status)
	}
	return fmt.Sprintf("journal api: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sends key as a Bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTrades fetches non-deleted trades shaped by q. A nil q returns them
// in store order.
func (c *Client) ListTrades(ctx context.Context, q *tradelist.Query) ([]model.Trade, error) {
	path := "/api/trades"
	if q != nil {
		if params := q.Values(); len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	var trades []model.Trade
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &trades); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

func (c *Client) GetTrade(ctx context.Context, id int64) (*model.Trade, error) {
	var t model.Trade
	if err := c.doJSON(ctx, http.MethodGet, tradePath(id), nil, &t); err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	return &t, nil
}

func (c *Client) CreateTrade(ctx context.Context, in model.TradeInput) (*model.Trade, error) {
	var t model.Trade
	if err := c.doJSON(ctx, http.MethodPost, "/api/trades", in, &t); err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}
	return &t, nil
}

// UpdateTrade replaces trade id with in.
func (c *Client) UpdateTrade(ctx context.Context, id int64, in model.TradeInput) (*model.Trade, error) {
	var t model.Trade
	if err := c.doJSON(ctx, http.MethodPut, tradePath(id), in, &t); err != nil {
		return nil, fmt.Errorf("update trade %d: %w", id, err)
	}
	return &t, nil
}

// CloseTrade records an exit on an existing trade. The current record is
// fetched first so the replace keeps every other field.
func (c *Client) CloseTrade(ctx context.Context, id int64, exitPrice decimal.Decimal, exitDate time.Time) (*model.Trade, error) {
	current, err := c.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	in := model.InputFromTrade(current)
	in.ExitPrice = &exitPrice
	in.ExitDate = exitDate.UTC().Format(time.RFC3339Nano)
	return c.UpdateTrade(ctx, id, in)
}

func (c *Client) DeleteTrade(ctx context.Context, id int64) error {
	if err := c.doJSON(ctx, http.MethodDelete, tradePath(id), nil, nil); err != nil {
		return fmt.Errorf("delete trade %d: %w", id, err)
	}
	return nil
}

// Stats fetches summary statistics, scoped by q's date range when set.
func (c *Client) Stats(ctx context.Context, q *tradelist.Query) (*report.Stats, error) {
	var s report.Stats
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/trades/stats", q), nil, &s); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &s, nil
}

func (c *Client) Dashboard(ctx context.Context, q *tradelist.Query) (*report.Dashboard, error) {
	var d report.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/trades/dashboard", q), nil, &d); err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}
	return &d, nil
}

// Export downloads the xlsx export into w and returns the server's
// suggested file name. lang may be empty.
func (c *Client) Export(ctx context.Context, w io.Writer, q *tradelist.Query, lang string) (string, error) {
	path := withQuery("/api/trades/export", q)
	if lang != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "lang=" + lang
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("export: request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("export: read body: %w", err)
	}
	return attachmentName(resp.Header.Get("Content-Disposition")), nil
}

// UploadImage sends content as the multipart file field and returns the
// URL to store in a trade's imageUrls.
func (c *Client) UploadImage(ctx context.Context, filename string, content io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("upload image: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/images", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return out.URL, nil
}

// --- transport ---

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "journalctl/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an *APIError carrying the
// server's {"error": ...} message when there is one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func tradePath(id int64) string {
	return "/api/trades/" + strconv.FormatInt(id, 10)
}

func withQuery(path string, q *tradelist.Query) string {
	if q == nil {
		return path
	}
	if params := q.Values(); len(params) > 0 {
		return path + "?" + params.Encode()
	}
	return path
}

func attachmentName(disposition string) string {
	const marker = "filename="
	i := strings.Index(disposition, marker)
	if i < 0 {
		return ""
	}
	return strings.Trim(disposition[i+len(marker):], `"`)
}
