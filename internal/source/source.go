// Package source talks to the GitHub contents API that hosts the backup files.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/suwonj/timeofme/internal/config"
	"github.com/suwonj/timeofme/internal/errors"
)

// maxBackupBytes caps a single downloaded backup.
const maxBackupBytes = 64 << 20

// File is one entry of a GitHub contents listing.
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path,omitempty"`
	SHA         string `json:"sha,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Type        string `json:"type,omitempty"`
	DownloadURL string `json:"download_url"`
}

// Source lists backup files and downloads their bodies.
type Source interface {
	ListFiles(ctx context.Context) ([]File, error)
	Fetch(ctx context.Context, f File) ([]byte, error)
}

// Client is the GitHub-backed Source.
type Client struct {
	baseURL   string
	repo      string
	dir       string
	token     string
	userAgent string
	http      *http.Client
}

// NewClient creates a Client from config.
func NewClient(cfg *config.Config, version string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		repo:      strings.Trim(cfg.Repo, "/"),
		dir:       strings.Trim(cfg.BackupDir, "/"),
		token:     cfg.Token,
		userAgent: "timeofme/" + version,
		http:      &http.Client{Timeout: cfg.HTTPTimeout()},
	}
}

// ListingURL returns the contents API URL for the backup directory.
func (c *Client) ListingURL() string {
	u := c.baseURL + "/repos/" + c.repo + "/contents"
	if c.dir != "" {
		u += "/" + (&url.URL{Path: c.dir}).EscapedPath()
	}
	return u
}

// ListFiles returns the raw directory listing.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	body, status, err := c.get(ctx, c.ListingURL(), "application/vnd.github+json")
	if err != nil {
		return nil, errors.NewListingFailed(err.Error())
	}
	if status != "" {
		return nil, errors.NewListingFailed(status)
	}

	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, errors.NewListingFailed(fmt.Sprintf("unexpected listing format: %v", err))
	}
	return files, nil
}

// Fetch downloads a backup body from its download URL.
func (c *Client) Fetch(ctx context.Context, f File) ([]byte, error) {
	if f.DownloadURL == "" {
		return nil, errors.NewFetchFailed(f.Name, "missing download_url")
	}
	body, status, err := c.get(ctx, f.DownloadURL, "")
	if err != nil {
		return nil, errors.NewFetchFailed(f.Name, err.Error())
	}
	if status != "" {
		return nil, errors.NewFetchFailed(f.Name, status)
	}
	return body, nil
}

// get performs a GET. A non-2xx response is reported through status, not err.
func (c *Client) get(ctx context.Context, rawURL, accept string) (body []byte, status string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.Status, nil
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBackupBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxBackupBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", maxBackupBytes)
	}
	return body, "", nil
}

// SelectBackups keeps *.json files and orders them newest name first.
// Backup names embed their date, so reverse lexical order is newest first.
func SelectBackups(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if f.Type != "" && f.Type != "file" {
			continue
		}
		if strings.HasSuffix(f.Name, ".json") {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b File) int {
		return strings.Compare(b.Name, a.Name)
	})
	return out
}
