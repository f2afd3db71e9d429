package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/seckillprobe/internal/buyers"
	"github.com/torosent/seckillprobe/internal/config"
	"github.com/torosent/seckillprobe/internal/outcome"
)

// MaxBodyBytes caps how much of a response body is read for classification.
const MaxBodyBytes = 1 << 20

type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource

	// rawBody and templated support per-buyer rendering in BuildFor.
	rawBody   string
	templated bool
}

func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.TrimSpace(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	bodySource, err := NewBodySource(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	// Fail fast on an unbuildable request so no attempt is ever sent with it.
	probe, err := http.NewRequest(method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if probe.URL.Host == "" {
		return nil, fmt.Errorf("target %q has no host", target)
	}

	templated := buyers.HasPlaceholder(target) || buyers.HasPlaceholder(cfg.Body)
	for _, values := range headers {
		for _, v := range values {
			templated = templated || buyers.HasPlaceholder(v)
		}
	}

	return &RequestBuilder{
		method:    method,
		target:    target,
		headers:   headers,
		body:      bodySource,
		rawBody:   cfg.Body,
		templated: templated,
	}, nil
}

// ErrInvalidHeaderValue is returned when a rendered header value would split
// the header block.
var ErrInvalidHeaderValue = errors.New("invalid header value")

// Templated reports whether the target, headers or body reference buyer fields.
func (b *RequestBuilder) Templated() bool { return b.templated }

// BuildFor builds the request for one buyer, substituting {{field}}
// placeholders in the target, header values and body.
func (b *RequestBuilder) BuildFor(ctx context.Context, buyer buyers.Buyer) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if !b.templated || buyer == nil {
		return b.Build(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body := []byte(buyers.Render(b.rawBody, buyer))
	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, b.method, buyers.Render(b.target, buyer), reader)
	if err != nil {
		return nil, &outcome.TransportError{Op: "build request", Err: err}
	}

	req.Header = make(http.Header, len(b.headers))
	for key, values := range b.headers {
		for _, v := range values {
			rendered := buyers.Render(v, buyer)
			if strings.ContainsAny(rendered, "\r\n") {
				return nil, &outcome.TransportError{Op: "build request", Err: fmt.Errorf("%w for %s", ErrInvalidHeaderValue, key)}
			}
			req.Header.Add(key, rendered)
		}
	}
	req.ContentLength = int64(len(body))
	if len(body) > 0 {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return req, nil
}

// Method returns the HTTP method requests are built with.
func (b *RequestBuilder) Method() string { return b.method }

// Target returns the request URL.
func (b *RequestBuilder) Target() string { return b.target }

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := b.body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if length, ok := b.body.ContentLength(); ok {
		req.ContentLength = length
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return b.body.NewReader()
	}

	return req, nil
}

// Response is the part of an HTTP answer the classifier looks at.
type Response struct {
	StatusCode int
	Body       string
}

// Exchange sends req and reads up to MaxBodyBytes of the response body.
// Transport failures are returned as-is from the client. A failure while
// reading the body is wrapped in an outcome.TransportError so that it is
// classified like any other transport problem, unless it is a timeout.
func Exchange(client *http.Client, req *http.Request) (Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return Response{StatusCode: resp.StatusCode}, &outcome.TransportError{Op: "read body", Err: err}
	}
	// Drain what is left so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return Response{StatusCode: resp.StatusCode, Body: string(data)}, nil
}

func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithPool(timeout, 0)
}

// NewClientWithPool sizes the idle connection pool for the given number of
// concurrent workers so every worker can keep its connection alive.
func NewClientWithPool(timeout time.Duration, workers int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	perHost := 32
	if workers > perHost {
		perHost = workers
	}
	maxIdle := 256
	if perHost > maxIdle {
		maxIdle = perHost
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
