// SPDX-License-Identifier: MPL-2.0

package notice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Level classifies a notice's urgency.
type Level string

const (
	LevelCritical  Level = "CRITICAL"
	LevelImportant Level = "IMPORTANT"
	LevelInfo      Level = "INFO"
)

// maxNoticeBody bounds the notice response size.
const maxNoticeBody = 1 << 20

type (
	// Notice is a server-published message for launcher users. Force notices
	// are shown regardless of prior acknowledgement.
	Notice struct {
		ID      string `json:"id"`
		Level   Level  `json:"level"`
		Force   bool   `json:"force"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	// Client fetches notices from the update server.
	Client struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a notice client for the given server base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "vlaunch/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the current notice for the program. A 204 response means no
// notice is published and yields (nil, nil).
func (c *Client) Latest(ctx context.Context, programID string) (*Notice, error) {
	url := fmt.Sprintf("%s/launcher/api/v1/programs/%s/notices/latest", c.baseURL, programID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building notice request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching notice: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		// fall through to decode
	default:
		return nil, fmt.Errorf("notice endpoint returned status %d", resp.StatusCode)
	}

	var n Notice
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxNoticeBody)).Decode(&n); err != nil {
		return nil, fmt.Errorf("decoding notice: %w", err)
	}
	if strings.TrimSpace(n.ID) == "" {
		return nil, fmt.Errorf("notice response is missing an id")
	}
	n.Level = normalizeLevel(n.Level)

	return &n, nil
}

// normalizeLevel maps unknown levels to INFO so a newer server cannot break
// an older launcher.
func normalizeLevel(l Level) Level {
	switch Level(strings.ToUpper(string(l))) {
	case LevelCritical:
		return LevelCritical
	case LevelImportant:
		return LevelImportant
	default:
		return LevelInfo
	}
}
