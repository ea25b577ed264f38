// Package release creates tagged releases on a hosting platform.
//
// This is a client for the platform's REST API (GitHub-shaped by default,
// overridable for compatible forges): slipway never implements the hosting
// side, it only drives it. Transient failures (5xx, network) are retried
// with exponential backoff; 4xx responses are treated as permanent.
package release

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dyluth/slipway/internal/artifact"
)

// ErrReleaseExists indicates a release for the tag already exists on the
// hosting platform. Re-running a pipeline for an already-released version
// surfaces this rather than silently overwriting the release.
var ErrReleaseExists = errors.New("release already exists for this tag")

const maxRetryElapsed = 2 * time.Minute

// Client talks to the hosting platform's release API.
type Client struct {
	apiURL     string
	repository string // owner/name
	token      string
	httpClient *http.Client
}

// Request describes the release to create.
type Request struct {
	TagName         string `json:"tag_name"`
	TargetCommitish string `json:"target_commitish,omitempty"`
	Name            string `json:"name"`
	Body            string `json:"body,omitempty"`
	Draft           bool   `json:"draft"`
	Prerelease      bool   `json:"prerelease"`
}

// Release is the hosting platform's record of a created release.
type Release struct {
	ID        int64  `json:"id"`
	TagName   string `json:"tag_name"`
	Name      string `json:"name"`
	HTMLURL   string `json:"html_url"`
	UploadURL string `json:"upload_url"`
}

// NewClient creates a release client.
// apiURL is the API base (e.g. https://api.github.com), repository is
// owner/name, token is the platform access token.
func NewClient(apiURL, repository, token string, timeout time.Duration) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		repository: repository,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateRelease creates a release for the given tag.
// The hosting platform materializes the tag at TargetCommitish if it does
// not already exist server-side, which is how the pushed tag appears without
// slipway ever running `git push --tags`.
func (c *Client) CreateRelease(ctx context.Context, req Request) (*Release, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal release request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/releases", c.apiURL, c.repository)

	var release *Release
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build release request: %w", err))
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			// Network errors are retryable
			return fmt.Errorf("release request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode == http.StatusCreated:
			var rel Release
			if err := json.Unmarshal(respBody, &rel); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode release response: %w", err))
			}
			release = &rel
			return nil
		case resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(string(respBody), "already_exists"):
			return backoff.Permanent(ErrReleaseExists)
		case resp.StatusCode >= 500:
			return fmt.Errorf("release API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		default:
			return backoff.Permanent(fmt.Errorf("release API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
		}
	}

	if err := c.retry(ctx, operation); err != nil {
		return nil, err
	}

	return release, nil
}

// UploadAsset attaches an artifact to a release.
// The upload URL comes from the release creation response as an RFC 6570
// template; everything after the first "{" is expansion syntax to strip.
func (c *Client) UploadAsset(ctx context.Context, release *Release, art artifact.Artifact) error {
	uploadURL := release.UploadURL
	if i := strings.Index(uploadURL, "{"); i >= 0 {
		uploadURL = uploadURL[:i]
	}
	endpoint := fmt.Sprintf("%s?name=%s", uploadURL, url.QueryEscape(art.Name))

	operation := func() error {
		f, err := os.Open(art.Path)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to open artifact %s: %w", art.Name, err))
		}
		defer f.Close()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build asset upload request: %w", err))
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Content-Type", "application/octet-stream")
		httpReq.ContentLength = art.Size

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("asset upload failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode == http.StatusCreated:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("asset upload returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		default:
			return backoff.Permanent(fmt.Errorf("asset upload returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
		}
	}

	return c.retry(ctx, operation)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}

func (c *Client) retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxRetryElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
