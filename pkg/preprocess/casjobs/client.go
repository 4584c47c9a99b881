// Package casjobs talks to the SciServer deployment that fronts SDSS
// CasJobs: the login portal for tokens, the CasJobs REST API for query
// jobs, and the drive service where table exports land.
package casjobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/config"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/errors"
	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/observability"
)

// Container is the drive folder table exports are written into.
const Container = "casjobs_container"

// Client issues authenticated requests against CasJobs and the drive
// service. A Client is safe for concurrent downloads once Login has
// succeeded; Login itself must complete first.
type Client struct {
	httpClient *http.Client
	baseURL    string
	loginURL   string
	driveURL   string
	logger     *slog.Logger

	pollCfg errors.RetryConfig
	waitCfg errors.RetryConfig

	token    string
	username string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the CasJobs REST API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLoginURL sets the login portal base URL.
func WithLoginURL(u string) ClientOption {
	return func(c *Client) {
		c.loginURL = strings.TrimRight(u, "/")
	}
}

// WithDriveURL sets the drive service base URL. It defaults to the
// CasJobs base URL, which the test servers rely on.
func WithDriveURL(u string) ClientOption {
	return func(c *Client) {
		c.driveURL = strings.TrimRight(u, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPollConfig sets the retry configuration for export readiness
// probes. Defaults to errors.PollingRetry.
func WithPollConfig(cfg errors.RetryConfig) ClientOption {
	return func(c *Client) {
		c.pollCfg = cfg
	}
}

// WithWaitConfig sets the retry configuration for job status polling.
func WithWaitConfig(cfg errors.RetryConfig) ClientOption {
	return func(c *Client) {
		c.waitCfg = cfg
	}
}

// NewClient creates a CasJobs client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    config.DefaultCasJobsURL,
		loginURL:   config.DefaultLoginURL,
		logger:     observability.DefaultLogger(nil),
		pollCfg:    errors.PollingRetry,
		waitCfg: errors.RetryConfig{
			MaxAttempts:    60,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     5 * time.Second,
			BackoffFactor:  1.0,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.driveURL == "" {
		c.driveURL = c.baseURL
	}
	return c
}

// Login authenticates against the login portal and stores the issued
// token for subsequent requests. The portal returns the token in the
// X-Subject-Token response header.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]any{
		"auth": map[string]any{
			"identity": map[string]any{
				"password": map[string]any{
					"user": map[string]any{
						"name":     username,
						"password": password,
					},
				},
			},
		},
	}

	resp, err := c.postJSON(ctx, c.loginURL+"/keystone/v3/tokens", body)
	if err != nil {
		return "", &errors.CasJobsError{Op: "login", Message: "authentication request failed", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get("X-Subject-Token")
	if token == "" {
		return "", &errors.CasJobsError{Op: "login", Message: "portal returned no token"}
	}

	c.token = token
	c.username = username
	c.logger.Debug("logged in to sciserver", slog.String("username", username))
	return token, nil
}

// postJSON issues a POST with a JSON body and returns the response if the
// status is 2xx.
func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends a request, adding the auth token when present, and converts
// non-2xx responses into typed HTTP errors.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &errors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   req.URL.Path,
		}
	}
	return resp, nil
}
