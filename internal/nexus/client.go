// Package nexus is a thin client for the Nexus Repository REST API: listing
// hosted repositories, paging through their components, and downloading
// assets. Every call is a single attempt; retry policy is deliberately out
// of scope.
package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfaraco/nexscan/internal/types"
)

// Client talks to one Nexus server over its v1 REST API.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// New creates a client for the server at baseURL using basic auth.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Host returns the server's host and port without the URL scheme, the
// prefix under which its docker registry exposes image references.
func (c *Client) Host() string {
	host := strings.TrimPrefix(c.baseURL, "https://")
	return strings.TrimPrefix(host, "http://")
}

// Ping probes the server status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/service/rest/v1/status", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Repositories returns all hosted repositories. Proxy and group
// repositories are excluded: their content either lives upstream or is a
// view over other repositories, so scanning them double-counts.
func (c *Client) Repositories(ctx context.Context) ([]types.Repository, error) {
	resp, err := c.get(ctx, "/service/rest/v1/repositories", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing repositories: HTTP %d", resp.StatusCode)
	}

	var all []types.Repository
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decoding repository list: %w", err)
	}

	hosted := make([]types.Repository, 0, len(all))
	for _, repo := range all {
		if strings.EqualFold(repo.Type, "hosted") {
			hosted = append(hosted, repo)
		}
	}
	return hosted, nil
}

// componentPage is one page of the paginated component listing.
type componentPage struct {
	Items             []types.Component `json:"items"`
	ContinuationToken string            `json:"continuationToken"`
}

// Components returns every component of a repository, following
// continuation tokens until the listing is exhausted.
func (c *Client) Components(ctx context.Context, repository string) ([]types.Component, error) {
	var components []types.Component
	token := ""

	for {
		params := url.Values{"repository": {repository}}
		if token != "" {
			params.Set("continuationToken", token)
		}

		resp, err := c.get(ctx, "/service/rest/v1/components", params)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("listing components of %s: HTTP %d", repository, resp.StatusCode)
		}

		var page componentPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding component page: %w", err)
		}

		components = append(components, page.Items...)
		if page.ContinuationToken == "" {
			return components, nil
		}
		token = page.ContinuationToken
	}
}

// Download streams an asset to localPath, creating parent directories.
// On failure any partial file is removed.
func (c *Client) Download(ctx context.Context, downloadURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", downloadURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}
