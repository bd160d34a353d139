// Package client is a Go client for the product API. GET requests go through
// an HTTP cache that revalidates with ETag and Last-Modified, so unchanged
// products and listings are served locally after a 304.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dimitrije/product-api/pkg/dto"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	reconnectInterval time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the caching HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCacheDir persists the response cache under dir.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Transport: httpcache.NewTransport(diskcache.New(dir))}
	}
}

// WithReconnectInterval sets the first delay before a dropped subscription
// reconnects.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) {
		c.reconnectInterval = d
	}
}

// New returns a client for the API at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:           strings.TrimRight(baseURL, "/"),
		token:             token,
		httpClient:        &http.Client{Transport: httpcache.NewTransport(httpcache.NewMemoryCache())},
		reconnectInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode     int
	Code           string
	Message        string
	CurrentVersion int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("product api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("product api: %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err means the product does not exist, including
// the "no longer exists" answer to an update.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusMethodNotAllowed)
}

// ListResult is the caller's products and the collection timestamp they
// were current at.
type ListResult struct {
	Products     []dto.ProductResponse
	LastModified time.Time
}

// List returns the caller's products. Repeated calls revalidate with the
// listing's ETag and reuse the cached listing when nothing changed.
func (c *Client) List(ctx context.Context) (*ListResult, error) {
	var products []dto.ProductResponse
	resp, err := c.do(ctx, http.MethodGet, "/api/product", nil, nil, &products)
	if err != nil {
		return nil, err
	}
	res := &ListResult{Products: products}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			res.LastModified = t
		}
	}
	return res, nil
}

func (c *Client) Get(ctx context.Context, id string) (*dto.ProductResponse, error) {
	var p dto.ProductResponse
	if _, err := c.do(ctx, http.MethodGet, productPath(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Create(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error) {
	var p dto.ProductResponse
	if _, err := c.do(ctx, http.MethodPost, "/api/product", nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces product req.ID, asserting the caller last saw version.
func (c *Client) Update(ctx context.Context, req dto.ProductRequest, version int) (*dto.ProductResponse, error) {
	if req.ID == "" {
		return nil, errors.New("product id is required")
	}
	header := http.Header{}
	header.Set("ETag", strconv.Itoa(version))

	var p dto.ProductResponse
	if _, err := c.do(ctx, http.MethodPut, productPath(req.ID), header, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, productPath(id), nil, nil, nil)
	return err
}

func productPath(id string) string {
	return "/api/product/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNoContent:
		return resp, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return resp, nil
	default:
		return nil, decodeError(resp)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Code           string `json:"code"`
		Message        string `json:"message"`
		Error          string `json:"error"`
		CurrentVersion int    `json:"current_version"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		apiErr.CurrentVersion = body.CurrentVersion
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
