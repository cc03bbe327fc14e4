// Package placeholder talks to the public placeholder REST endpoint that
// stands in for a coupon backend. It only knows about posts; turning posts
// into coupons is the service's job.
package placeholder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"coupon-manager/internal/model"
	"coupon-manager/pkg/config"
	ierr "coupon-manager/pkg/errors"
	"coupon-manager/pkg/logger"
)

// Client calls the /posts collection of the placeholder endpoint
type Client struct {
	http    *http.Client
	baseURL string
	logger  *logger.Logger
}

// NewClient creates a client for the configured endpoint
func NewClient(cfg *config.Configuration, log *logger.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Remote.Timeout},
		baseURL: strings.TrimRight(cfg.Remote.BaseURL, "/"),
		logger:  log,
	}
}

// ListPosts fetches the first limit posts
func (c *Client) ListPosts(ctx context.Context, limit int) ([]model.Post, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("_limit", strconv.Itoa(limit))
	}

	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/posts", query, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost creates a post and returns the endpoint's copy, including its id
func (c *Client) CreatePost(ctx context.Context, post model.Post) (*model.Post, error) {
	var created model.Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, post, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePost replaces the post identified by post.ID
func (c *Client) UpdatePost(ctx context.Context, post model.Post) (*model.Post, error) {
	if post.ID <= 0 {
		return nil, ierr.NewError("post id is required").
			WithHint("Coupon is not known to the remote endpoint").
			Mark(ierr.ErrValidation)
	}

	var updated model.Post
	path := "/posts/" + strconv.Itoa(post.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, post, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Could not encode the request").
				Mark(ierr.ErrSystem)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Could not reach the coupon service").
			Mark(ierr.ErrExternalCall)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnw("placeholder request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithHint("Could not reach the coupon service").
			WithReportableDetails(map[string]any{"method": method, "path": path}).
			Mark(ierr.ErrExternalCall)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Could not read the coupon service response").
			Mark(ierr.ErrExternalCall)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warnw("placeholder returned non-2xx",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return ierr.NewError(fmt.Sprintf("unexpected status %d", resp.StatusCode)).
			WithHint("The coupon service rejected the request").
			WithReportableDetails(map[string]any{
				"method": method,
				"path":   path,
				"status": resp.StatusCode,
			}).
			Mark(ierr.ErrExternalCall)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ierr.WithError(err).
			WithHint("The coupon service sent an unreadable response").
			Mark(ierr.ErrExternalCall)
	}
	return nil
}
