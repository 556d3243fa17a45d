// Package backend is a small client for the site's content API
// (books, news, uploads).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Book is the subset of a book record used for previews.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
}

// News is the subset of a news item used for previews.
type News struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	PublishedAt string `json:"publishedAt"`
}

// Date returns the YYYY-MM-DD part of PublishedAt.
func (n News) Date() string {
	if len(n.PublishedAt) >= 10 {
		return n.PublishedAt[:10]
	}
	return n.PublishedAt
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
}

// ErrNotConfigured is returned when no base URL was set.
var ErrNotConfigured = errors.New("backend base URL not configured")

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Book fetches GET /books/{id}.
func (c *Client) Book(ctx context.Context, id string) (Book, error) {
	var b Book
	err := c.getJSON(ctx, "book", "/books/"+url.PathEscape(id), &b)
	return b, err
}

// News fetches GET /news/{slug}.
func (c *Client) News(ctx context.Context, slug string) (News, error) {
	var n News
	err := c.getJSON(ctx, "news", "/news/"+url.PathEscape(slug), &n)
	return n, err
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}

	return decodeRecord(body, out)
}

// decodeRecord accepts either a bare object or an envelope {"data": {...}}.
func decodeRecord(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		body = env.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// UploadResult is the backend's raw answer to an upload.
type UploadResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Upload forwards a file to POST /upload/{category} as multipart field "file".
// authorization is passed through as the Authorization header when non-empty.
// Any backend status is returned in the result; only transport failures are errors.
func (c *Client) Upload(ctx context.Context, category, filename, contentType string, data []byte, authorization string) (*UploadResult, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("upload: create part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("upload: write part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/"+url.PathEscape(category), &buf)
	if err != nil {
		return nil, fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("upload: read body: %w", err)
	}
	return &UploadResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
