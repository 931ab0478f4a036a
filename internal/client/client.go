// Package client talks to the comment widget HTTP API. A Client implements
// the comment store contract, so the widget list view and composer can run
// against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
)

// AppendRequest is the payload for posting a comment.
type AppendRequest struct {
	AuthorLabel string `json:"author_label"`
	Body        string `json:"body"`
}

// AppendResponse is returned for an accepted comment.
type AppendResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Client is the comment widget API client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client

	mu    sync.Mutex
	token string
}

var _ store.Store = (*Client)(nil)

// New creates a new API client. token resumes an anonymous session and may be empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Streams stay open until cancelled
		streamClient: &http.Client{},
	}
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SignInAnonymously starts a new anonymous session and keeps its token.
func (c *Client) SignInAnonymously(ctx context.Context) (*models.Session, error) {
	var s models.Session
	if err := c.post(ctx, "/v1/sessions/anonymous", nil, &s); err != nil {
		return nil, fmt.Errorf("client.SignInAnonymously: %w", err)
	}
	c.setToken(s.ID)
	return &s, nil
}

// GetComments fetches the current snapshot for contentKey.
func (c *Client) GetComments(ctx context.Context, contentKey string, order models.Order) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.get(ctx, commentsPath(contentKey, order, ""), &snap); err != nil {
		return nil, fmt.Errorf("client.GetComments: %w", err)
	}
	return &snap, nil
}

// Append posts a comment, signing in anonymously first if there is no session.
func (c *Client) Append(ctx context.Context, contentKey, authorLabel, body string) (string, error) {
	if c.Token() == "" {
		if _, err := c.SignInAnonymously(ctx); err != nil {
			return "", &store.AuthError{Err: err}
		}
	}

	var resp AppendResponse
	err := c.post(ctx, commentsPath(contentKey, "", ""), AppendRequest{AuthorLabel: authorLabel, Body: body}, &resp)
	if err != nil {
		return "", classify("append", contentKey, fmt.Errorf("client.Append: %w", err))
	}
	if resp.SessionID != "" {
		c.setToken(resp.SessionID)
	}
	return resp.ID, nil
}

// Subscribe opens the server-sent snapshot stream for contentKey.
func (c *Client) Subscribe(ctx context.Context, contentKey string, order models.Order) (store.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, commentsPath(contentKey, order, "/stream"), nil)
	if err != nil {
		cancel()
		return nil, &store.StoreError{Op: "subscribe", ContentKey: contentKey, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, &store.StoreError{Op: "subscribe", ContentKey: contentKey, Err: fmt.Errorf("do request: %w", err)}
	}
	if resp.StatusCode >= 400 {
		herr := readHTTPError(resp)
		resp.Body.Close() //nolint:errcheck // best-effort close
		cancel()
		return nil, classify("subscribe", contentKey, fmt.Errorf("client.Subscribe: %w", herr))
	}

	sub := newStreamSubscription(ctx, cancel, contentKey, resp.Body)
	go sub.run()
	return sub, nil
}

func commentsPath(contentKey string, order models.Order, suffix string) string {
	p := "/v1/comments/" + url.PathEscape(contentKey) + suffix
	if order != "" {
		p += "?order=" + url.QueryEscape(string(order))
	}
	return p
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return readHTTPError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func readHTTPError(resp *http.Response) *HTTPError {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
		return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}
