// Package publish uploads built artifacts to a package index.
//
// It speaks the index's legacy upload convention: one multipart POST per
// file with the package metadata as form fields, authenticated as
// "__token__" with an API token. The index's own validation (version
// format, file name rules) is authoritative; slipway only transports.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dyluth/slipway/internal/artifact"
)

// ErrAlreadyPublished indicates the index already has a file with this name.
// Package indexes treat uploads as immutable, so this is permanent: the
// caller either skips it (skip_existing) or fails the run.
var ErrAlreadyPublished = errors.New("file already published to index")

const maxRetryElapsed = 2 * time.Minute

// Client uploads distribution files to a package index.
type Client struct {
	uploadURL  string
	token      string
	httpClient *http.Client
}

// NewClient creates an index upload client.
func NewClient(uploadURL, token string, timeout time.Duration) *Client {
	return &Client{
		uploadURL:  uploadURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload publishes a single artifact under the given package name and version.
// Transient failures (5xx, network) are retried with exponential backoff.
// A response indicating the file already exists returns ErrAlreadyPublished.
func (c *Client) Upload(ctx context.Context, name, version string, art artifact.Artifact) error {
	operation := func() error {
		body, contentType, err := c.buildForm(name, version, art)
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build upload request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)
		req.SetBasicAuth("__token__", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("index upload failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return nil
		case isAlreadyExists(resp.StatusCode, string(respBody)):
			return backoff.Permanent(ErrAlreadyPublished)
		case resp.StatusCode >= 500:
			return fmt.Errorf("index returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		default:
			return backoff.Permanent(fmt.Errorf("index returned %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
		}
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxRetryElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// buildForm assembles the multipart upload body for one artifact.
// The form is rebuilt on every retry attempt since the body reader is
// consumed by each request.
func (c *Client) buildForm(name, version string, art artifact.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		":action":          "file_upload",
		"protocol_version": "1",
		"name":             name,
		"version":          version,
		"filetype":         filetypeFor(art.Name),
		"sha256_digest":    art.SHA256,
	}
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", key, err)
		}
	}

	part, err := w.CreateFormFile("content", art.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	f, err := os.Open(art.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open artifact %s: %w", art.Name, err)
	}
	defer f.Close()

	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read artifact %s: %w", art.Name, err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// filetypeFor maps artifact file names to index distribution types.
func filetypeFor(name string) string {
	if strings.HasSuffix(name, ".whl") {
		return "bdist_wheel"
	}
	return "sdist"
}

// isAlreadyExists recognizes the index's duplicate-file responses.
// Indexes differ: 400 with an explanatory message or a plain 409.
func isAlreadyExists(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "already exist") {
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
