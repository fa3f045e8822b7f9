package gallery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/insights"
	"github.com/bytedance/sonic"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

var jsonAPI = sonic.ConfigStd

// APIError is a non-2xx response from the covenant API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("covenant api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("covenant api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the gallery endpoints of a covenant server. It satisfies Voter.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient gets
// a client with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}, nil
}

// Upvote records one upvote and returns the new count.
func (c *Client) Upvote(ctx context.Context, id string) (int, error) {
	var out struct {
		Upvotes int `json:"upvotes"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upvote", map[string]string{"id": id}, &out); err != nil {
		return 0, err
	}
	return out.Upvotes, nil
}

// Recent lists up to limit covenants, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]domain.Covenant, error) {
	path := "/api/covenants"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []domain.Covenant
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Insights fetches community statistics and the narrative.
func (c *Client) Insights(ctx context.Context) (insights.Summary, error) {
	var out insights.Summary
	if err := c.do(ctx, http.MethodGet, "/api/insights", nil, &out); err != nil {
		return insights.Summary{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := jsonAPI.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if jsonAPI.Unmarshal(raw, &e) == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}

	if err := jsonAPI.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
