/*
Copyright 2025 The Kubeflow authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package livy

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

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/kubeflow/spark-livy-runner/pkg/common"
)

// Options configures a Client.
type Options struct {
	// Host is the gateway base URL, e.g. http://localhost:8998.
	Host string
	// SessionKind is the session kind used when a creation request leaves it empty.
	SessionKind string
	// RequestTimeout bounds a single HTTP round trip. Zero means no bound.
	RequestTimeout time.Duration
	// QPS and Burst configure the outbound request limiter. QPS <= 0 disables it.
	QPS   float64
	Burst int

	Username string
	Password string
	// Headers are added to every request, e.g. X-Requested-By for CSRF protected gateways.
	Headers map[string]string

	HTTPClient *http.Client
	Logger     *logr.Logger
}

// Client talks to a Livy gateway. A Client is safe for concurrent use across
// sessions. Submitting statements to one session from several goroutines is
// not guarded and is left to the caller.
type Client struct {
	baseURL     *url.URL
	sessionKind string
	httpClient  *http.Client
	limiter     *rate.Limiter
	username    string
	password    string
	headers     map[string]string
	logger      logr.Logger
}

// NewClient returns a Client for the gateway at opts.Host.
func NewClient(opts Options) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("gateway host is required")
	}
	baseURL, err := url.Parse(strings.TrimRight(opts.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway host %q: %v", opts.Host, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid gateway host %q: scheme must be http or https", opts.Host)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.QPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), burst)
	}

	sessionKind := opts.SessionKind
	if sessionKind == "" {
		sessionKind = common.DefaultSessionKind
	}

	logger := log.Log.WithName("livy")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		baseURL:     baseURL,
		sessionKind: sessionKind,
		httpClient:  httpClient,
		limiter:     limiter,
		username:    opts.Username,
		password:    opts.Password,
		headers:     opts.Headers,
		logger:      logger,
	}, nil
}

// Host returns the gateway base URL.
func (c *Client) Host() string {
	return c.baseURL.String()
}

type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

func (r *response) ok() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// do issues one request. Connection failures become a TransportError; the
// status code is left to the caller.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) (*response, error) {
	target := c.resolve(path, query)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %v", op, err)
		}
		body = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		// The limiter only fails early when the wait would outlive the deadline.
		return nil, fmt.Errorf("%s: %w: %v", op, context.DeadlineExceeded, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %v", op, err)
	}
	requestID := uuid.New().String()
	req.Header.Set(common.HeaderContentType, common.ContentTypeJSON)
	req.Header.Set(common.HeaderRequestID, requestID)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}

	c.logger.V(1).Info("Gateway request", "op", op, "method", method, "url", target, "status", resp.StatusCode,
		"requestID", requestID, "duration", time.Since(start))
	return &response{statusCode: resp.StatusCode, header: resp.Header, body: data}, nil
}

// doJSON issues a request, fails with a GatewayError on a non-2xx response and
// decodes the body into out when out is not nil.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, payload, out any) (*response, error) {
	resp, err := c.do(ctx, op, method, path, query, payload)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &GatewayError{Op: op, StatusCode: resp.statusCode, Body: string(resp.body)}
	}
	if out != nil {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, &MalformedResponseError{Op: op, Reason: err.Error(), Body: string(resp.body)}
		}
	}
	return resp, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// location returns the gateway-relative resource path from the Location
// header. Absolute URLs are reduced to their path.
func location(op string, resp *response) (string, error) {
	value := resp.header.Get(common.HeaderLocation)
	if value == "" {
		return "", &MalformedResponseError{Op: op, Reason: "missing Location header", Body: string(resp.body)}
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("invalid Location header %q", value)}
	}
	if u.Path == "" {
		return "", &MalformedResponseError{Op: op, Reason: fmt.Sprintf("invalid Location header %q", value)}
	}
	return u.Path, nil
}
