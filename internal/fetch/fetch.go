// Package fetch provides the outbound batch-fetch capability: many HTTP
// requests issued in one call, resolved concurrently, returned as parallel
// responses. A transport-level failure of any request fails the whole batch;
// HTTP error statuses are returned as responses when muted.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Request describes one outbound call in a batch.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Payload string
	// MuteHTTPExceptions returns non-2xx statuses as responses instead of
	// failing the batch.
	MuteHTTPExceptions bool
}

// Response is the resolved result for one request.
type Response struct {
	StatusCode int
	Body       []byte
}

// Batch issues all requests of one batch and returns parallel responses.
type Batch interface {
	FetchAll(ctx context.Context, requests []Request) ([]Response, error)
}

// Config holds HTTP client settings for the batch fetcher.
type Config struct {
	// Timeout bounds each individual request in the batch.
	Timeout time.Duration
	// MaxIdleConnsPerHost controls connection reuse toward the API host.
	MaxIdleConnsPerHost int
}

// HTTP is the production Batch implementation on net/http.
type HTTP struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP creates a batch fetcher with a pooled transport.
func NewHTTP(cfg Config) *HTTP {
	perHost := cfg.MaxIdleConnsPerHost
	if perHost <= 0 {
		perHost = 16
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          perHost * 2,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTP{
		client:  &http.Client{Transport: transport},
		timeout: timeout,
	}
}

// FetchAll issues every request concurrently and waits for all of them.
// The returned slice is parallel to requests. The first transport-level
// failure cancels the remaining requests and fails the batch.
func (h *HTTP) FetchAll(ctx context.Context, requests []Request) ([]Response, error) {
	responses := make([]Response, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			resp, err := h.fetchOne(gctx, req)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (h *HTTP) fetchOne(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	target, authHeader, err := splitBasicAuth(req.URL)
	if err != nil {
		return Response{}, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(req.Payload))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if !req.MuteHTTPExceptions && resp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Close releases idle connections.
func (h *HTTP) Close() {
	h.client.CloseIdleConnections()
}

// splitBasicAuth strips user:pass@ credentials out of rawURL and returns the
// cleaned URL plus the Authorization header value derived from them.
func splitBasicAuth(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid request URL: %w", err)
	}
	if u.User == nil {
		return rawURL, "", nil
	}
	pass, _ := u.User.Password()
	token := base64.StdEncoding.EncodeToString([]byte(u.User.Username() + ":" + pass))
	u.User = nil
	return u.String(), "Basic " + token, nil
}
