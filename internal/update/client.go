// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vlaunch-cli/internal/version"
)

const (
	// defaultCheckTimeout bounds the latest-version query. The check must
	// fail fast: a slow remote is treated like an unreachable one.
	defaultCheckTimeout = 10 * time.Second

	// maxJSONResponseBytes is the upper bound on API response size (1 MB).
	// Prevents unbounded memory consumption from malformed responses.
	maxJSONResponseBytes = 1 << 20
)

type (
	// CheckError classifies any failure to complete the remote version check:
	// transport errors, non-2xx statuses, and malformed responses. The
	// launcher treats a CheckError identically to "up to date" so a flaky
	// network never blocks using the installed application.
	CheckError struct {
		Reason string
		Err    error
	}

	// Descriptor is the server-reported download descriptor for an available
	// update. It is transient: discarded after the install attempt completes
	// or is abandoned.
	Descriptor struct {
		Version version.Tag
		URL     string
		SHA256  string // lowercase hex digest of the artifact
		Size    int64  // expected artifact size in bytes
	}

	// CheckResult is the outcome of a latest-version comparison. Descriptor
	// is nil when the local version is current (or newer than the remote).
	CheckResult struct {
		Latest     version.Tag
		Descriptor *Descriptor
	}

	// Client queries the launcher update API for version information and
	// downloads release artifacts.
	Client struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)

	// latestResponse is the JSON wire format of the latest-version endpoint.
	latestResponse struct {
		ProgramID     string       `json:"program_id"`
		LatestVersion string       `json:"latest_version"`
		Asset         assetPayload `json:"asset"`
	}

	// assetPayload is the JSON wire format of the download descriptor.
	assetPayload struct {
		URL    string `json:"url"`
		SHA256 string `json:"sha256"`
		Size   int64  `json:"size"`
	}
)

// Error formats the check failure with its underlying cause.
func (e *CheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("update check failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("update check failed: %s", e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *CheckError) Unwrap() error { return e.Err }

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy
// configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithTimeout replaces the default per-request timeout of the client's HTTP
// transport.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a Client for the update server at baseURL.
// Defaults: 10s request timeout, userAgent="vlaunch/dev".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultCheckTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "vlaunch/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check queries the latest version for programID and compares it against
// local. The remote answer is authoritative: the client only determines
// whether the remote version is strictly newer. Any failure to complete the
// query yields a *CheckError.
func (c *Client) Check(ctx context.Context, programID string, local version.Tag) (*CheckResult, error) {
	latestURL := fmt.Sprintf("%s/launcher/api/v1/programs/%s/latest",
		c.baseURL, url.PathEscape(programID))

	resp, err := c.doRequest(ctx, latestURL)
	if err != nil {
		return nil, &CheckError{Reason: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return nil, &CheckError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var lr latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&lr); err != nil {
		return nil, &CheckError{Reason: "decoding response", Err: err}
	}

	if strings.TrimSpace(lr.ProgramID) == "" || lr.ProgramID != programID {
		return nil, &CheckError{Reason: fmt.Sprintf("response program_id %q does not match %q", lr.ProgramID, programID)}
	}

	latest, err := version.Parse(lr.LatestVersion)
	if err != nil {
		return nil, &CheckError{Reason: "invalid latest_version", Err: err}
	}

	// Local equal to or newer than remote (a downgrade situation during
	// rollouts) is reported as up to date; the launcher never downgrades.
	if !latest.NewerThan(local) {
		return &CheckResult{Latest: latest}, nil
	}

	desc, err := descriptorFrom(latest, lr.Asset)
	if err != nil {
		// An update without a usable descriptor cannot be installed; surface
		// it as a check failure so the launcher falls back to the local
		// version.
		return nil, &CheckError{Reason: "unusable download descriptor", Err: err}
	}

	return &CheckResult{Latest: latest, Descriptor: desc}, nil
}

// Download fetches the artifact at rawURL and returns a streaming reader plus
// the reported content length (-1 when unknown). The caller is responsible
// for closing the returned ReadCloser.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	resp, err := c.doRequest(ctx, rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading %s: %w", redactURL(rawURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading %s: unexpected status %d", redactURL(rawURL), resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// doRequest creates and executes a GET request with common headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// descriptorFrom validates the wire asset payload into a Descriptor. An
// update announcement is only actionable when the URL, digest, and size are
// all present and well-formed.
func descriptorFrom(latest version.Tag, a assetPayload) (*Descriptor, error) {
	if strings.TrimSpace(a.URL) == "" {
		return nil, fmt.Errorf("asset url is empty")
	}
	digest := strings.ToLower(strings.TrimSpace(a.SHA256))
	if !isValidHexHash(digest) {
		return nil, fmt.Errorf("asset sha256 %q is not a 64-character hex digest", a.SHA256)
	}
	if a.Size <= 0 {
		return nil, fmt.Errorf("asset size %d is not positive", a.Size)
	}

	return &Descriptor{
		Version: latest,
		URL:     strings.TrimSpace(a.URL),
		SHA256:  digest,
		Size:    a.Size,
	}, nil
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
