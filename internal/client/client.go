// Package client implements draft.Backend against a quickcheck server.
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
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/logging"
	"github.com/Iron-Ham/quickcheck/internal/server"
)

// DefaultTimeout bounds a request when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// Client talks to the draft API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logging.Logger
}

var _ draft.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client's logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewValidationError("must be an http(s) URL").WithField("backend.url").WithValue(baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("client")
	return c, nil
}

// Create implements draft.Backend.
func (c *Client) Create(ctx context.Context, userID, title string, payload []byte) (string, error) {
	var resp server.CreateResponse
	err := c.do(ctx, "create", http.MethodPost, "/drafts", nil,
		server.CreateRequest{UserID: userID, Title: title, Payload: payload}, &resp)
	if err != nil {
		var active *draft.ActiveDraftError
		if errors.As(err, &active) {
			active.UserID = userID
		}
		return "", err
	}
	return resp.ID, nil
}

// Update implements draft.Backend.
func (c *Client) Update(ctx context.Context, id, title string, payload []byte) error {
	return c.do(ctx, "update", http.MethodPut, draftPath(id), nil,
		server.WriteRequest{Title: title, Payload: payload}, nil)
}

// FetchUnfinishedForUser implements draft.Backend.
func (c *Client) FetchUnfinishedForUser(ctx context.Context, userID string) ([]draft.Record, error) {
	q := url.Values{"user_id": {userID}, "state": {string(draft.RecordDraft)}}
	var resp server.ListResponse
	if err := c.do(ctx, "fetch unfinished", http.MethodGet, "/drafts", q, nil, &resp); err != nil {
		return nil, err
	}
	recs := make([]draft.Record, 0, len(resp.Drafts))
	for _, d := range resp.Drafts {
		recs = append(recs, d.Record())
	}
	return recs, nil
}

// FetchByID implements draft.Backend. Finished drafts are not found.
func (c *Client) FetchByID(ctx context.Context, id string) (*draft.Record, error) {
	var resp server.DraftJSON
	if err := c.do(ctx, "fetch", http.MethodGet, draftPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	rec := resp.Record()
	if !rec.Unfinished() {
		return nil, errors.NewNotFoundError("draft", id)
	}
	return &rec, nil
}

// Delete implements draft.Backend.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, draftPath(id), nil, nil, nil)
}

// Archive implements draft.Backend.
func (c *Client) Archive(ctx context.Context, id string, payload []byte) error {
	return c.do(ctx, "archive", http.MethodPost, draftPath(id)+"/archive", nil,
		server.WriteRequest{Payload: payload}, nil)
}

// Submit implements draft.Backend.
func (c *Client) Submit(ctx context.Context, id, title string, payload []byte) error {
	return c.do(ctx, "submit", http.MethodPost, draftPath(id)+"/submit", nil,
		server.WriteRequest{Title: title, Payload: payload}, nil)
}

// draftPath returns the escaped API path of draft id.
func draftPath(id string) string {
	return "/drafts/" + url.PathEscape(id)
}

func draftIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/drafts/")
	if !ok {
		return ""
	}
	escaped, _, _ := strings.Cut(rest, "/")
	if id, err := url.PathUnescape(escaped); err == nil {
		return id
	}
	return escaped
}

// endpoint joins the base URL with path, which is already escaped.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + server.APIPrefix + path
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.NewBackendError(op, 0, ctxErr)
		}
		return errors.NewBackendError(op, 0, fmt.Errorf("%w: %v", errors.ErrBackendUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("backend call", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 300 {
		return c.decodeError(op, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewBackendError(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) decodeError(op, path string, resp *http.Response) error {
	var body server.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NewNotFoundError("draft", draftIDFromPath(path))
	case http.StatusConflict:
		if body.Code == server.CodeActiveDraft {
			return &draft.ActiveDraftError{DraftID: body.DraftID}
		}
	case http.StatusBadRequest:
		return errors.NewValidationError(body.Error)
	}
	return errors.NewBackendError(op, resp.StatusCode, errors.New(body.Error))
}
