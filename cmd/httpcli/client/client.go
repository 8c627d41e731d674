package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/zkleaderboard/verifier/ledger"
	"github.com/zkleaderboard/verifier/logging"
	"github.com/zkleaderboard/verifier/server"
	"github.com/zkleaderboard/verifier/storage"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrTimedOut       = errors.New("timed out")
	ErrConflict       = errors.New("already settled")
	ErrAmbiguous      = errors.New("settlement outcome unknown")
)

// StatusError carries a non 200 response of the verifier.
type StatusError struct {
	Code int
	Body []byte
	err  error
}

func (e *StatusError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%v: response status code: %d, body: %s", e.err, e.Code, e.Body)
	}
	return fmt.Sprintf("unrecognized error: status code: %d, body: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.err
}

// HTTPClient talks to the REST API of a verifier.
type HTTPClient struct {
	baseURL *url.URL
	// reads are retried on failures, runs only when rate limited
	reads  *retryablehttp.Client
	writes *retryablehttp.Client
}

func NewHTTPClient(baseUrl string, logger *zap.Logger) (*HTTPClient, error) {
	baseURL, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "http"
	}

	reads := retryablehttp.NewClient()
	reads.Logger = logging.NewLeveledLogger(logger)

	writes := retryablehttp.NewClient()
	writes.Logger = logging.NewLeveledLogger(logger)
	writes.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return resp != nil && resp.StatusCode == http.StatusTooManyRequests, nil
	}

	return &HTTPClient{
		baseURL: baseURL,
		reads:   reads,
		writes:  writes,
	}, nil
}

// Verify runs the verification of the addresses and blocks until it finishes.
func (c *HTTPClient) Verify(ctx context.Context, addresses []string) (*server.VerifyResponse, error) {
	resBody := server.VerifyResponse{}
	request := server.VerifyRequest{Addresses: addresses}
	if err := c.req(ctx, c.writes, http.MethodPost, "/api/verify", &request, &resBody); err != nil {
		return nil, fmt.Errorf("verifying addresses: %w", err)
	}
	return &resBody, nil
}

// VerifyContract asks the ledger whether the attestation holds.
func (c *HTTPClient) VerifyContract(ctx context.Context, q ledger.AttestationQuery) (bool, error) {
	resBody := server.VerifyContractResponse{}
	if err := c.req(ctx, c.reads, http.MethodPost, "/api/verify_contract", &q, &resBody); err != nil {
		return false, fmt.Errorf("verifying attestation %d: %w", q.AttestationID, err)
	}
	return resBody.Verified, nil
}

// Run returns the stored outcome of a run.
func (c *HTTPClient) Run(ctx context.Context, runID string) (*storage.Record, error) {
	resBody := storage.Record{}
	if err := c.req(ctx, c.reads, http.MethodGet, "/api/runs/"+url.PathEscape(runID), nil, &resBody); err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return &resBody, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.req(ctx, c.reads, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) req(ctx context.Context, client *retryablehttp.Client, method, path string, reqBody, resBody any) error {
	var body io.Reader
	if reqBody != nil {
		jsonReqBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(jsonReqBody)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("doing request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body (%w)", err)
	}

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &StatusError{Code: res.StatusCode, Body: data, err: ErrNotFound}
	case http.StatusBadRequest:
		return &StatusError{Code: res.StatusCode, Body: data, err: ErrInvalidRequest}
	case http.StatusRequestTimeout:
		return &StatusError{Code: res.StatusCode, Body: data, err: ErrTimedOut}
	case http.StatusConflict:
		return &StatusError{Code: res.StatusCode, Body: data, err: ErrConflict}
	case http.StatusBadGateway:
		return &StatusError{Code: res.StatusCode, Body: data, err: ErrAmbiguous}
	default:
		return &StatusError{Code: res.StatusCode, Body: data}
	}

	if resBody != nil {
		if err := json.Unmarshal(data, resBody); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
