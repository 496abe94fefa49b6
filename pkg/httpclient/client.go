package httpclient

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client is a thin resty wrapper shared by the upstream pollers and the
// downstream push sink. resty picks up HTTP(S)_PROXY from the environment.
type Client struct {
	client *resty.Client
}

// New creates a client rooted at host with the given per-request timeout.
func New(host string, timeout time.Duration) *Client {
	host = strings.TrimSuffix(host, "/")

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// honor Retry-After on 429
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return d, nil
					}
				}
				return 5 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{client: client}
}

// NoRetry disables retries; pushes are at-most-once per sink.
func (c *Client) NoRetry() *Client {
	c.client.SetRetryCount(0)
	return c
}

// GetJSON fetches endpoint with query params and decodes the JSON body
// into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]string, out any) error {
	r := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if len(params) > 0 {
		r.SetQueryParams(params)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Get(endpoint)
	if err != nil {
		return errors.Wrapf(err, "GET %s", endpoint)
	}
	if resp.IsError() {
		return errors.Errorf("GET %s: status %d", endpoint, resp.StatusCode())
	}
	return nil
}

// PostJSON sends body as JSON and returns the response status code.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return 0, errors.Wrapf(err, "POST %s", endpoint)
	}
	return resp.StatusCode(), nil
}

// BaseURL returns the configured host.
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}
