package proofservice

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

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/types"
)

//go:generate mockgen -package mocks -destination mocks/client.go . Client

// Client talks to the asynchronous proof generation service.
type Client interface {
	// Submit registers the addresses as a new proof job.
	Submit(ctx context.Context, addresses types.AddressSet) (types.ProofJob, error)
	// FetchStatus performs a single status round trip for the job.
	FetchStatus(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error)
}

type submitRequest struct {
	Addresses []string `json:"addresses"`
}

// HTTPClient implements Client against the proof service REST API.
type HTTPClient struct {
	baseURL *url.URL
	client  *retryablehttp.Client
}

type clientOptions struct {
	retries int
	timeout time.Duration
	logger  *zap.Logger
}

type ClientOptionFunc func(*clientOptions)

// WithRetries sets how many times a failed request is retried by the transport.
// The default of 0 keeps every call a single round trip.
func WithRetries(retries int) ClientOptionFunc {
	return func(opts *clientOptions) {
		opts.retries = retries
	}
}

func WithRequestTimeout(timeout time.Duration) ClientOptionFunc {
	return func(opts *clientOptions) {
		opts.timeout = timeout
	}
}

func WithLogger(logger *zap.Logger) ClientOptionFunc {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// NewHTTPClient returns new instance of HTTPClient connecting to the specified url.
func NewHTTPClient(baseUrl string, opts ...ClientOptionFunc) (*HTTPClient, error) {
	options := clientOptions{
		timeout: 30 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	baseURL, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "http"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = options.retries
	client.HTTPClient.Timeout = options.timeout
	client.Logger = logging.NewLeveledLogger(options.logger.Named("proof-service"))
	// Status codes are mapped to the error taxonomy in req().
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		baseURL: baseURL,
		client:  client,
	}, nil
}

// Submit implements Client.
func (c *HTTPClient) Submit(ctx context.Context, addresses types.AddressSet) (types.ProofJob, error) {
	if len(addresses) == 0 {
		return "", fmt.Errorf("%w: no addresses to submit", types.ErrInvalidRequest)
	}
	reqBody, err := json.Marshal(submitRequest{Addresses: addresses})
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	data, err := c.req(ctx, http.MethodPost, c.baseURL.JoinPath("check_position/"), reqBody)
	if err != nil {
		return "", fmt.Errorf("submitting addresses: %w", err)
	}

	// The job id comes back as a JSON string. Accept a bare body too.
	var jobID string
	if err := json.Unmarshal(data, &jobID); err != nil {
		jobID = strings.TrimSpace(string(data))
	}
	if jobID == "" {
		return "", fmt.Errorf("%w: empty job id in response", types.ErrServiceUnavailable)
	}
	return types.ProofJob(jobID), nil
}

// FetchStatus implements Client.
func (c *HTTPClient) FetchStatus(ctx context.Context, job types.ProofJob) (*types.ProofStatus, error) {
	if job == "" {
		return nil, fmt.Errorf("%w: empty job id", types.ErrInvalidRequest)
	}
	data, err := c.req(ctx, http.MethodGet, c.baseURL.JoinPath("job", string(job)), nil)
	if err != nil {
		return nil, fmt.Errorf("getting status of job %s: %w", job, err)
	}

	status := &types.ProofStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, fmt.Errorf("%w: decoding status of job %s: %v", types.ErrServiceUnavailable, job, err)
	}
	return status, nil
}

func (c *HTTPClient) req(ctx context.Context, method string, endpoint *url.URL, reqBody []byte) ([]byte, error) {
	var body io.Reader
	if reqBody != nil {
		body = bytes.NewReader(reqBody)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		if res != nil {
			res.Body.Close()
		}
		return nil, fmt.Errorf("%w: doing request: %v", types.ErrServiceUnavailable, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", types.ErrServiceUnavailable, err)
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return data, nil
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: response status code: %s, body: %s", types.ErrJobNotFound, res.Status, string(data))
	case res.StatusCode == http.StatusBadRequest, res.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: response status code: %s, body: %s", types.ErrInvalidRequest, res.Status, string(data))
	default:
		return nil, fmt.Errorf("%w: response status code: %s, body: %s", types.ErrServiceUnavailable, res.Status, string(data))
	}
}
