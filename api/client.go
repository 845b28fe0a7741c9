// Package api is a thin client for the VulnLib REST API. Every call is a
// single request against a fixed base path; the client keeps no state between
// calls beyond what its cookie jar holds.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// DefaultPrefix is the path every endpoint hangs off.
const DefaultPrefix = "/api"

// Client issues requests against base URL + prefix. The resource fields
// group the endpoints of one backend resource each.
type Client struct {
	base       *url.URL
	prefix     string
	httpClient *http.Client
	jar        http.CookieJar
	header     http.Header
	log        zerolog.Logger

	Auth    *AuthClient
	Books   *BooksClient
	Users   *UsersClient
	Loans   *LoansClient
	Admin   *AdminClient
	Reports *ReportsClient
}

// Option configures a Client.
type Option func(*Client)

// WithPrefix replaces the "/api" path prefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = "/" + strings.Trim(prefix, "/") }
}

// WithHTTPClient sets the transport. The client never adds a timeout of its
// own; set one here or on the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCookieJar keeps the backend's session cookie across calls.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.jar = jar }
}

// WithHeader adds a header sent on every request. Per-request headers still
// win over it.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithUserAgent is shorthand for WithHeader("User-Agent", ua).
func WithUserAgent(ua string) Option {
	return WithHeader("User-Agent", ua)
}

// WithLogger sets where failed requests are reported.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}

	c := &Client{
		base:       u,
		prefix:     DefaultPrefix,
		httpClient: &http.Client{},
		header:     make(http.Header),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prefix == "/" {
		c.prefix = ""
	}
	if c.jar != nil {
		hc := *c.httpClient
		hc.Jar = c.jar
		c.httpClient = &hc
	}

	c.Auth = &AuthClient{c: c}
	c.Books = &BooksClient{c: c}
	c.Users = &UsersClient{c: c}
	c.Loans = &LoansClient{c: c}
	c.Admin = &AdminClient{c: c}
	c.Reports = &ReportsClient{c: c}
	return c, nil
}

// BaseURL returns a copy of the server URL, without the API prefix.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Jar returns the cookie jar, or nil when none was configured.
func (c *Client) Jar() http.CookieJar { return c.jar }

// Request carries the optional parts of a call. A nil *Request is a GET
// without body.
type Request struct {
	Method string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded unless it is an io.Reader, which is sent as is.
	Body any
}

// Do sends the request and decodes the JSON response into out (which may
// be nil). Non-2xx responses become *RequestError, transport failures
// *NetworkError and bodies that are not JSON *ParseError.
func (c *Client) Do(ctx context.Context, endpoint string, req *Request, out any) error {
	resp, err := c.send(ctx, endpoint, req)
	if err != nil {
		return c.fail(endpoint, err)
	}
	defer resp.Body.Close()
	return c.fail(endpoint, c.decode(endpoint, resp, out))
}

// Fetch sends the request and hands back the raw response for endpoints that
// do not speak JSON. Non-2xx responses are still turned into errors; the
// caller closes the body of a successful response.
func (c *Client) Fetch(ctx context.Context, endpoint string, req *Request) (*http.Response, error) {
	resp, err := c.send(ctx, endpoint, req)
	if err != nil {
		return nil, c.fail(endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.fail(endpoint, c.decode(endpoint, resp, nil))
	}
	return resp, nil
}

// Upload is a multipart/form-data file submission.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
	Fields   map[string]string
}

// Upload posts a multipart form to endpoint and decodes the JSON reply.
func (c *Client) Upload(ctx context.Context, endpoint string, up *Upload, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range up.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile(up.Field, up.Filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, up.Content); err != nil {
		return fmt.Errorf("read %s: %w", up.Filename, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", mw.FormDataContentType())
	return c.Do(ctx, endpoint, &Request{
		Method: http.MethodPost,
		Header: header,
		Body:   &buf,
	}, out)
}

func (c *Client) send(ctx context.Context, endpoint string, req *Request) (*http.Response, error) {
	if req == nil {
		req = &Request{}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.base.String() + c.prefix + endpoint
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}
	return resp, nil
}

// decode parses the body first and looks at the status second, so an error
// page that is not JSON surfaces as a ParseError.
func (c *Client) decode(endpoint string, resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if !json.Valid(data) {
		return &ParseError{
			Endpoint:    endpoint,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Title:       htmlTitle(data),
			Err:         errors.New("body is not valid JSON"),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Message:  serverMessage(data, resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{
			Endpoint:    endpoint,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Err:         err,
		}
	}
	return nil
}

func (c *Client) fail(endpoint string, err error) error {
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", endpoint).Msg("api error")
	}
	return err
}

func serverMessage(data []byte, status int) string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if msg, ok := body.Message.(string); ok && msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

// htmlTitle pulls the <title> out of an HTML error page, e.g. Flask's
// "404 Not Found".
func htmlTitle(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(trimmed))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return title
}

func pathID(id string) string {
	return "/" + url.PathEscape(id)
}
