// Package productapi talks to the remote product REST service.
package productapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/productdesk/productdesk/internal/products"
)

const maxErrorBody = 64 << 10

// Observer records the outcome of each call.
type Observer interface {
	ObserveUpstream(op, outcome string, d time.Duration)
}

// Client wraps interactions with the product API. Requests are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// NewClient constructs a client for baseURL, e.g. http://localhost:8080/api.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// WithObserver attaches o to the client and returns it.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the service answers its health endpoint at the host root.
func (c *Client) Ping(ctx context.Context) error {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("ping: parse base url: %w", err)
	}
	target.Path = "/"
	target.RawQuery = ""
	return c.do(ctx, "ping", http.MethodGet, target.String(), nil, nil)
}

// List fetches one page of products.
func (c *Client) List(ctx context.Context, params products.QueryParams) (products.PagedResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("size", strconv.Itoa(params.Size))
	q.Set("sortBy", params.SortBy)
	q.Set("sortDir", params.SortDir)

	var payload pagedPayload
	if err := c.do(ctx, "list products", http.MethodGet, c.endpoint("")+"?"+q.Encode(), nil, &payload); err != nil {
		return products.PagedResponse{}, err
	}
	return payload.normalize(params), nil
}

// Get fetches a single product.
func (c *Client) Get(ctx context.Context, id int64) (products.Product, error) {
	var product products.Product
	if err := c.do(ctx, "get product", http.MethodGet, c.endpoint(strconv.FormatInt(id, 10)), nil, &product); err != nil {
		return products.Product{}, err
	}
	return product, nil
}

// Create posts a new product. Any id on the input is dropped.
func (c *Client) Create(ctx context.Context, product products.Product) (products.Product, error) {
	var created products.Product
	if err := c.do(ctx, "create product", http.MethodPost, c.endpoint(""), product.WithoutID(), &created); err != nil {
		return products.Product{}, err
	}
	return created, nil
}

// Update replaces the product identified by product.ID.
func (c *Client) Update(ctx context.Context, product products.Product) (products.Product, error) {
	if !product.HasID() {
		return products.Product{}, fmt.Errorf("update product: %w", products.ErrMissingID)
	}
	var updated products.Product
	if err := c.do(ctx, "update product", http.MethodPut, c.endpoint(strconv.FormatInt(*product.ID, 10)), product, &updated); err != nil {
		return products.Product{}, err
	}
	return updated, nil
}

// Delete removes the product with id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete product", http.MethodDelete, c.endpoint(strconv.FormatInt(id, 10)), nil, nil)
}

func (c *Client) endpoint(id string) string {
	if id == "" {
		return c.baseURL + "/products"
	}
	return c.baseURL + "/products/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "network", start)
		c.logger.Warn("product api request failed", slog.String("op", op), slog.Any("error", err))
		return &products.NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(op, outcome(resp.StatusCode), start)
	c.logger.Debug("product api request",
		slog.String("op", op),
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &products.HTTPError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body", op)
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) observe(op, result string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveUpstream(op, result, time.Since(start))
	}
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	case status >= 300:
		return "http_3xx"
	default:
		return "ok"
	}
}

// errorMessage pulls a human readable message out of an error body. Plain text
// bodies are used as is; JSON bodies are searched for the usual message fields.
func errorMessage(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		if strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}
	for _, name := range []string{"message", "details", "detail", "error", "title"} {
		switch v := fields[name].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}
	return ""
}

// pagedPayload mirrors the list response; the optional fields are pointers
// because some servers only send content, totalElements and totalPages.
type pagedPayload struct {
	Content       []products.Product `json:"content"`
	TotalElements int64              `json:"totalElements"`
	TotalPages    int                `json:"totalPages"`
	Size          *int               `json:"size"`
	Number        *int               `json:"number"`
	First         *bool              `json:"first"`
	Last          *bool              `json:"last"`
}

func (p pagedPayload) normalize(params products.QueryParams) products.PagedResponse {
	resp := products.PagedResponse{
		Content:       p.Content,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Size:          params.Size,
		Number:        params.Page,
		First:         params.Page <= 1,
		Last:          params.Page >= p.TotalPages,
	}
	if resp.Content == nil {
		resp.Content = []products.Product{}
	}
	if p.Size != nil {
		resp.Size = *p.Size
	}
	if p.Number != nil {
		resp.Number = *p.Number
	}
	if p.First != nil {
		resp.First = *p.First
	}
	if p.Last != nil {
		resp.Last = *p.Last
	}
	resp.Empty = len(resp.Content) == 0
	return resp
}
