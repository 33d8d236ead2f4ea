// internal/common/http/client.go
package http

import (
	"crypto/tls"
	"net/http"
	"time"
)

const DefaultTimeout = 5 * time.Second

// Options configures the outbound client used for upstream lookups.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

type Client struct {
	httpClient *http.Client
}

// NewClient builds a single-attempt client with a whole-request timeout.
// TLS peer verification is on unless InsecureSkipVerify is set.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentRoundTripper{wrapped: transport, userAgent: opts.UserAgent}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// Timeout reports the configured request timeout.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}
