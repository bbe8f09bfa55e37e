// Package client is a typed HTTP client for the meal analysis API.
//
// Error responses are decoded back into *domain.Error so callers can branch
// on domain codes the same way the server does.
package client

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
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	userAgent = "camera-cli/1.0"

	// maxResponseBody bounds decoded response bodies.
	maxResponseBody = 4 << 20
)

// Client calls the analysis API on behalf of one user.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("server URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit uploads a meal image and returns the accepted analysis.
func (c *Client) Submit(ctx context.Context, filename string, image io.Reader) (*domain.SubmitAnalysisResponse, error) {
	const op = "client.submit"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, strings.ReplaceAll(filepath.Base(filename), `"`, "")))
	h.Set("Content-Type", contentTypeFor(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, domain.Internal(err, op, "build upload")
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, domain.Internal(err, op, "read image")
	}
	if err := mw.Close(); err != nil {
		return nil, domain.Internal(err, op, "build upload")
	}

	var resp domain.SubmitAnalysisResponse
	if err := c.do(ctx, op, http.MethodPost, "/api/analyses", mw.FormDataContentType(), &buf, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAnalysis fetches one analysis owned by the caller.
func (c *Client) GetAnalysis(ctx context.Context, id uuid.UUID) (*domain.Analysis, error) {
	var a domain.Analysis
	if err := c.do(ctx, "client.get_analysis", http.MethodGet, "/api/analyses/"+id.String(), "", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Usage returns the caller's plan usage.
func (c *Client) Usage(ctx context.Context) (*domain.QuotaUsage, error) {
	var u domain.QuotaUsage
	if err := c.do(ctx, "client.usage", http.MethodGet, "/api/usage", "", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Summary returns the completed meals of one UTC day. A zero day means today.
func (c *Client) Summary(ctx context.Context, day time.Time) (*domain.DailySummary, error) {
	path := "/api/analyses/summary"
	if !day.IsZero() {
		path += "?date=" + day.UTC().Format("2006-01-02")
	}

	var s domain.DailySummary
	if err := c.do(ctx, "client.summary", http.MethodGet, path, "", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// errorBody mirrors the server's error envelope.
type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return domain.Internal(err, op, "build request URL")
	}
	u := *c.baseURL
	u.Path += ref.Path
	u.RawQuery = ref.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return domain.Internal(err, op, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(op, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.Internal(err, op, "decode response")
	}
	return nil
}

// decodeError turns an error response into a domain error. Bodies that are
// not in the error envelope fall back to a code derived from the status.
func decodeError(op string, status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return domain.Errorf(codeForStatus(status), op, "server returned %d %s", status, http.StatusText(status))
	}

	if body.Error.Code == domain.EINVALID && len(body.Error.Fields) > 0 {
		return &domain.ValidationError{Op: op, Fields: body.Error.Fields}
	}
	return &domain.Error{Code: body.Error.Code, Op: op, Message: body.Error.Message}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.EINVALID
	case http.StatusUnauthorized:
		return domain.EUNAUTHORIZED
	case http.StatusPaymentRequired:
		return domain.EQUOTA
	case http.StatusForbidden:
		return domain.EFORBIDDEN
	case http.StatusNotFound:
		return domain.ENOTFOUND
	case http.StatusConflict:
		return domain.ECONFLICT
	case http.StatusRequestEntityTooLarge:
		return domain.ETOOLARGE
	case http.StatusTooManyRequests:
		return domain.ERATELIMIT
	case http.StatusServiceUnavailable:
		return domain.EPERSISTENCE
	case http.StatusGatewayTimeout:
		return domain.ETIMEOUT
	}
	return domain.EINTERNAL
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}
