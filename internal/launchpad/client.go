// Package launchpad is a small client for the Launchpad web service API.
// It covers the entries and named operations the bug assistant needs:
// entry lookups, collections, ws.op calls and PATCH updates.
package launchpad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultVersion = "devel"
	userAgent      = "bugit (launchpad-web-service-client)"
)

type Client struct {
	httpClient  *http.Client
	apiRoot     string
	version     string
	serviceRoot string
	signer      *signer
	logger      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithVersion selects the web service version appended to the API root.
func WithVersion(version string) Option {
	return func(cl *Client) { cl.version = version }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewClient returns a client for apiRoot (for example https://api.launchpad.net/)
// that signs every request with creds.
func NewClient(apiRoot string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		apiRoot:    apiRoot,
		version:    DefaultVersion,
		signer:     newSigner(creds),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.serviceRoot = joinRoot(c.apiRoot, c.version)
	return c
}

func (c *Client) ServiceRoot() string { return c.serviceRoot }

func joinRoot(apiRoot, version string) string {
	if !strings.HasSuffix(apiRoot, "/") {
		apiRoot += "/"
	}
	return apiRoot + version + "/"
}

// resolve turns a relative resource path into an absolute URL. Links handed
// out by the service are already absolute.
func (c *Client) resolve(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return c.serviceRoot + strings.TrimPrefix(link, "/")
}

// encodeParams applies the service's argument encoding: strings are sent as
// is, everything else as JSON.
func encodeParams(params map[string]any) (url.Values, error) {
	values := url.Values{}
	for k, v := range params {
		switch tv := v.(type) {
		case string:
			values.Set(k, tv)
		default:
			raw, err := json.Marshal(tv)
			if err != nil {
				return nil, fmt.Errorf("failed to encode parameter %s: %w", k, err)
			}
			values.Set(k, string(raw))
		}
	}
	return values, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create launchpad request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", c.signer.header())
	return req, nil
}

// do sends req and returns the body of a 2xx response together with the
// response headers.
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	c.logger.Debug("launchpad request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reach launchpad: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read launchpad response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, resp.Header, nil
}

func (c *Client) get(ctx context.Context, link string, params map[string]any, out any) error {
	target := c.resolve(link)
	if len(params) > 0 {
		values, err := encodeParams(params)
		if err != nil {
			return err
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + values.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// invoke calls a named POST operation. Operations that create a resource
// answer 201 with its location, which is returned.
func (c *Client) invoke(ctx context.Context, link, op string, params map[string]any, out any) (string, error) {
	values, err := encodeParams(params)
	if err != nil {
		return "", err
	}
	values.Set("ws.op", op)
	req, err := c.newRequest(ctx, http.MethodPost, c.resolve(link), strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, header, err := c.do(req)
	if err != nil {
		return "", err
	}
	if err := decode(body, out); err != nil {
		return "", err
	}
	return header.Get("Location"), nil
}

func (c *Client) invokeMultipart(ctx context.Context, link, op string, fields map[string]string, file Attachment) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("ws.op", op); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data"; filename="%s"`, escapeQuotes(file.Filename)))
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.resolve(link), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, header, err := c.do(req)
	if err != nil {
		return "", err
	}
	return header.Get("Location"), nil
}

// patch sends a partial JSON representation of an entry and decodes the
// updated entry into out when the service returns it.
func (c *Client) patch(ctx context.Context, link string, fields map[string]any, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal launchpad patch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, c.resolve(link), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// getCollection reads every page of a collection by following
// next_collection_link until the service stops returning one.
func getCollection[T any](ctx context.Context, c *Client, link string, params map[string]any) ([]T, error) {
	all := []T{}
	seen := map[string]bool{}
	next := link
	for next != "" {
		var page collection[T]
		if err := c.get(ctx, next, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		c.logger.Debug("launchpad pagination", zap.Int("entries_so_far", len(all)), zap.Int("total", page.TotalSize))

		// The next link carries the original query.
		next = page.NextCollectionLink
		params = nil
		if seen[next] {
			return nil, fmt.Errorf("collection %s repeats page %s after %d entries", link, next, len(all))
		}
		seen[next] = true
	}
	return all, nil
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse launchpad response: %w", err)
	}
	return nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
