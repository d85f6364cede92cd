package httpx

import (
	"context"
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "priceoracle/1.0"

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New builds a client whose overall request timeout is timeout. Adapters
// still bound each call with their own, usually shorter, context deadline.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: DefaultUserAgent}
}

// Do sends req with the default headers applied. A context carried by ctx
// replaces the request's own.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx != nil && ctx != req.Context() {
		req = req.WithContext(ctx)
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// Doer adapts Client to the single-method interface API clients accept.
type Doer struct {
	C *Client
}

func (d Doer) Do(req *http.Request) (*http.Response, error) {
	return d.C.Do(req.Context(), req)
}
