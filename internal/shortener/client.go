package shortener

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

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/shortfire/internal/auth"
	"github.com/torosent/shortfire/internal/extractor"
	"github.com/torosent/shortfire/internal/tracing"
)

const (
	createPath      = "/rest/v3/short-urls"
	maxBodyReadSize = 64 * 1024
	maxErrorBody    = 512
)

// conflictRule matches Shlink's "slug already in use" problem detail.
var conflictRule = extractor.MustNew("conflict", "", `(?i)already (?:exists|in use)`)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// ShortCodePath is the JSON path of the code in creation responses.
	ShortCodePath string
	Auth          auth.Provider
	Tracing       *tracing.Provider
	// HTTPClient overrides the default transport. It should not follow
	// redirects.
	HTTPClient *http.Client
}

// Client talks to one shortening service. It is safe for concurrent use.
type Client struct {
	base      string
	http      *http.Client
	auth      auth.Provider
	code      extractor.Extractor
	tracer    trace.Tracer
	propagate bool
}

// CreateRequest is the body of a short URL creation.
type CreateRequest struct {
	LongURL      string   `json:"longUrl"`
	CustomSlug   string   `json:"customSlug,omitempty"`
	Title        string   `json:"title,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	FindIfExists bool     `json:"findIfExists"`
}

// Operation names used in errors and spans.
const (
	OpCreate  = "create"
	OpResolve = "resolve"
)

// Response is the observation of one request. Latency spans sending the
// request to reading the (bounded) body.
type Response struct {
	Op         string
	StatusCode int
	Latency    time.Duration
	// ShortCode is the created code (create only).
	ShortCode string
	// Location is the redirect target (resolve only).
	Location string
	// Conflict is set when a create failed because the slug already exists.
	Conflict bool
	Body     []byte

	codePath string
}

// Err maps the response onto the success rules of its operation.
func (r Response) Err() error {
	switch r.Op {
	case OpCreate:
		if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusCreated {
			return &StatusError{Op: r.Op, StatusCode: r.StatusCode, Body: snippet(r.Body)}
		}
		if r.ShortCode == "" {
			path := r.codePath
			if path == "" {
				path = "shortCode"
			}
			return &MissingCodeError{StatusCode: r.StatusCode, Path: path}
		}
	case OpResolve:
		if (r.StatusCode != http.StatusMovedPermanently && r.StatusCode != http.StatusFound) || r.Location == "" {
			return &StatusError{Op: r.Op, StatusCode: r.StatusCode, Body: snippet(r.Body)}
		}
	}
	return nil
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("shortener: invalid base url %q", opts.BaseURL)
	}

	path := opts.ShortCodePath
	if path == "" {
		path = "shortCode"
	}
	code, err := extractor.New("shortCode", path, "")
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(opts.Timeout)
	}
	provider := opts.Auth
	if provider == nil {
		provider = auth.Noop{}
	}

	return &Client{
		base:      base,
		http:      hc,
		auth:      provider,
		code:      code,
		tracer:    opts.Tracing.Tracer(),
		propagate: opts.Tracing.ShouldPropagate(),
	}, nil
}

// Create posts a new short URL. The error is non-nil only when no response
// was received.
func (c *Client) Create(ctx context.Context, in CreateRequest) (Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return Response{Op: OpCreate}, fmt.Errorf("create: encode: %w", err)
	}

	ctx, span := tracing.StartRequestSpan(ctx, c.tracer, "creation", http.MethodPost, in.CustomSlug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+createPath, bytes.NewReader(payload))
	if err != nil {
		tracing.EndSpan(span, 0, err)
		return Response{Op: OpCreate}, fmt.Errorf("create: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.auth.InjectHeader(ctx, req); err != nil {
		tracing.EndSpan(span, 0, err)
		return Response{Op: OpCreate}, fmt.Errorf("create: auth: %w", err)
	}

	raw, err := c.do(ctx, req, OpCreate)
	if err != nil {
		tracing.EndSpan(span, 0, err)
		return raw.Response, err
	}
	resp := raw.Response
	resp.codePath = c.code.JSONPath
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		resp.ShortCode, _ = c.code.Extract(resp.Body)
	} else if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusConflict {
		_, resp.Conflict = conflictRule.Extract(resp.Body)
	}
	tracing.EndSpan(span, resp.StatusCode, resp.Err())
	return resp, nil
}

// Resolve requests a short code without following the redirect. kind
// labels the span ("redirect" or "viral").
func (c *Client) Resolve(ctx context.Context, kind, shortCode string) (Response, error) {
	ctx, span := tracing.StartRequestSpan(ctx, c.tracer, kind, http.MethodGet, shortCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+url.PathEscape(shortCode), nil)
	if err != nil {
		tracing.EndSpan(span, 0, err)
		return Response{Op: OpResolve}, fmt.Errorf("resolve: %w", err)
	}

	raw, err := c.do(ctx, req, OpResolve)
	if err != nil {
		tracing.EndSpan(span, 0, err)
		return raw.Response, err
	}
	resp := raw.Response
	resp.Location = raw.header.Get("Location")
	tracing.EndSpan(span, resp.StatusCode, resp.Err())
	return resp, nil
}

type rawResponse struct {
	Response
	header http.Header
}

func (c *Client) do(ctx context.Context, req *http.Request, op string) (rawResponse, error) {
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return rawResponse{Response: Response{Op: op, Latency: time.Since(start)}}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	latency := time.Since(start)
	if readErr != nil {
		body = nil
	}
	return rawResponse{
		Response: Response{Op: op, StatusCode: resp.StatusCode, Latency: latency, Body: body},
		header:   resp.Header,
	}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
