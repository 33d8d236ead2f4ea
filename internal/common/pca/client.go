// internal/common/pca/client.go
package pca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultBaseURL  = "https://services.postcodeanywhere.co.uk"
	DefaultProduct  = "PostcodeAnywhere"
	DefaultMode     = "Interactive"
	DefaultEndpoint = "RetrieveByParts"
	DefaultVersion  = "1.00"

	// maxBodyBytes bounds how much of an upstream response is read.
	maxBodyBytes = 4 << 20
)

// ErrMissingCredentials is returned before any network I/O when no licence
// key has been supplied.
var ErrMissingCredentials = errors.New("address API lookup licence not available")

// TransportError covers every failure to obtain a usable response body:
// network errors, timeouts, non-200 statuses and empty bodies.
type TransportError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Credentials authenticate a single lookup.
type Credentials struct {
	Key      string
	UserName string
}

// Config locates the upstream endpoint.
type Config struct {
	BaseURL  string
	Product  string
	Mode     string
	Endpoint string
	Version  string
}

// Doer is satisfied by *http.Client and the shared outbound client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	config Config
	http   Doer
}

func NewClient(cfg Config, httpClient Doer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{config: cfg, http: httpClient}
}

// BuildURL renders the request URL for a normalized postcode.
func (c *Client) BuildURL(postcode string, creds Credentials) (string, error) {
	if creds.Key == "" {
		return "", ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("Key", creds.Key)
	params.Set("Postcode", postcode)
	if creds.UserName != "" {
		params.Set("UserName", creds.UserName)
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s/json.ws?%s",
		c.config.BaseURL,
		url.PathEscape(c.config.Product),
		url.PathEscape(c.config.Mode),
		url.PathEscape(c.config.Endpoint),
		url.PathEscape(c.config.Version),
		params.Encode(),
	), nil
}

// Fetch performs exactly one GET against the upstream and returns the raw
// body. It never retries.
func (c *Client) Fetch(ctx context.Context, postcode string, creds Credentials) ([]byte, error) {
	endpoint, err := c.BuildURL(postcode, creds)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Message: redactKey(err.Error(), creds.Key), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &TransportError{
			Message:    fmt.Sprintf("unexpected status %d from address service", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Message: redactKey(err.Error(), creds.Key), StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxBodyBytes {
		return nil, &TransportError{
			Message:    fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes),
			StatusCode: resp.StatusCode,
		}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &TransportError{Message: "No content", StatusCode: resp.StatusCode}
	}

	return body, nil
}

// url.Error embeds the full request URL, licence key included.
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}
