package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/geeknik/citadel-browser/internal/security"
)

// FetchResult is the Network collaborator's response shape (spec §6).
type FetchResult struct {
	Status      int
	Headers     map[string]string
	Body        []byte
	ContentType string // sniffed via mimetype when the header is absent/generic
}

// Client is the default Network collaborator implementation: tracking
// params are stripped and a circuit breaker shields repeated upstream
// failures (spec §6). The Client does not check the URL scheme itself;
// callers pass it only URLs that security.UpgradeOrRefuse accepted.
type Client struct {
	resty   *resty.Client
	breaker *Breaker
	limiter *rate.Limiter
}

// NewClient builds a production-shaped client: retryable transport,
// bounded timeout, lenient breaker thresholds tuned for flaky public
// hosts.
func NewClient() *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Citadel)")
	restyClient.SetTransport(retryClient.StandardClient().Transport)

	breaker := New("network-fetch", Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 8
		},
	})

	return &Client{
		resty:   restyClient,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

// Fetch performs the request the spec describes: only https is allowed
// (http is upgraded or refused by the caller via
// security.UpgradeOrRefuse before Fetch is even invoked), tracking
// params are stripped, gzip bodies are transparently decompressed, and
// the content type is sniffed when the server's header is missing or
// generic.
func (c *Client) Fetch(ctx context.Context, rawURL string, stripTracking bool) (*FetchResult, error) {
	target := rawURL
	if stripTracking {
		target = security.StripTrackingParams(target)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.resty.R().SetContext(ctx).Get(target)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	resp := raw.(*resty.Response)

	body, err := maybeDecompress(resp.Body(), resp.Header().Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decompress response: %w", err)
	}

	headers := make(map[string]string)
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	contentType := headers["Content-Type"]
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(body).String()
	}

	return &FetchResult{
		Status:      resp.StatusCode(),
		Headers:     headers,
		Body:        body,
		ContentType: contentType,
	}, nil
}

func maybeDecompress(body []byte, encoding string) ([]byte, error) {
	if encoding != "gzip" {
		return body, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
