package httpx

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// Doer describes the part of http.Client the adapters need.
//
//go:generate mockgen -package=httpx_test -destination=mock_doer_test.go -source=httpx.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
// All pipeline network calls go through it so every request carries an
// explicit timeout and a bounded retry count.
type Client struct {
	HTTP      Doer
	UserAgent string
	Headers   map[string]string
	// Attempts is the total number of tries per request (min 1).
	Attempts int
	// RetryWait is the pause between tries.
	RetryWait time.Duration
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: "marketsnap/1.0",
		Attempts:  1,
		RetryWait: 500 * time.Millisecond,
	}
}

// Do sends the request with default headers applied. Connection errors
// and 5xx statuses are retried up to Attempts times; requests with a
// body are never retried since the body is consumed on the first try.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	attempts := c.Attempts
	if attempts < 1 || req.Body != nil {
		attempts = 1
	}

	var resp *http.Response
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(c.RetryWait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		resp, err = c.HTTP.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode >= 500 && i < attempts-1 {
			drain(resp)
			continue
		}
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BodySnippet reads up to n bytes of the body for diagnostics.
func BodySnippet(r io.Reader, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, n))
	return string(b)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
