package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxBody = 4 << 20

// Response is a fully read backend reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the audit backend.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a backend client. A nil httpClient gets a 60s timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger.With(zap.String("component", "upstream")),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Audit posts body to <base>/audit/<tier> with the given extra headers.
func (c *Client) Audit(ctx context.Context, tier string, body []byte, header http.Header) (*Response, error) {
	endpoint := fmt.Sprintf("%s/audit/%s", c.baseURL, url.PathEscape(tier))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("forwarding audit", zap.String("url", endpoint), zap.Int("bytes", len(body)))

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("url", endpoint), zap.Error(err))
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		c.logger.Warn("failed to read backend body", zap.String("url", endpoint), zap.Error(err))
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Check implements middleware.HealthChecker. Any HTTP answer from the
// backend host counts as reachable.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
