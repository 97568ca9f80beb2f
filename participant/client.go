package participant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/logichill/sagaforge/logging"
	"github.com/logichill/sagaforge/retry"
)

// defaultRetryConfig is 3 retries (4 attempts total: 1 initial + 3
// retries) with 250ms/500ms/1s exponential backoff, InitialDelay
// doubling on each retry up to MaxDelay.
func defaultRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:   4,
		InitialDelay:  250 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      1 * time.Second,
	}
}

// Client issues ExecuteStep/CompensateStep RPCs against a resolved
// participant over HTTP, retrying connection-level failures with
// bounded exponential backoff before surfacing them as a step failure.
type Client struct {
	httpClient *http.Client
	registry   *Registry
	retryCfg   retry.Config
	logger     logging.ILogger
}

// NewClient builds a participant client. httpClient may be nil to use
// a new http.Client with StepDeadline as its timeout.
func NewClient(registry *Registry, httpClient *http.Client, logger logging.ILogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: StepDeadline}
	}
	if logger == nil {
		logger = logging.ComponentLogger("participant.client")
	}
	return &Client{httpClient: httpClient, registry: registry, retryCfg: defaultRetryConfig(), logger: logger}
}

// ExecuteStep calls POST /{service}/saga/participate, retrying
// connection errors per the bounded backoff policy. A response the
// participant returns with success=false is NOT retried — that is a
// deterministic participant failure, not a transient one.
func (c *Client) ExecuteStep(ctx context.Context, serviceName string, req ExecuteStepRequest) (*ExecuteStepResponse, error) {
	desc, err := c.registry.Resolve(serviceName)
	if err != nil {
		return nil, err
	}

	var resp ExecuteStepResponse
	callErr := retry.Do(ctx, func(ctx context.Context) error {
		return c.postJSON(ctx, desc.BaseURL+"/"+serviceName+"/saga/participate", req, &resp)
	}, c.retryCfg)
	if callErr != nil {
		return nil, &UnavailableError{ServiceName: serviceName, Cause: callErr}
	}
	return &resp, nil
}

// CompensateStep calls POST /{service}/saga/compensate with the same
// retry policy as ExecuteStep.
func (c *Client) CompensateStep(ctx context.Context, serviceName string, req CompensateStepRequest) (*CompensateStepResponse, error) {
	desc, err := c.registry.Resolve(serviceName)
	if err != nil {
		return nil, err
	}

	var resp CompensateStepResponse
	callErr := retry.Do(ctx, func(ctx context.Context) error {
		return c.postJSON(ctx, desc.BaseURL+"/"+serviceName+"/saga/compensate", req, &resp)
	}, c.retryCfg)
	if callErr != nil {
		return nil, &UnavailableError{ServiceName: serviceName, Cause: callErr}
	}
	return &resp, nil
}

// Info calls GET /{service}/saga/info, used at registry bootstrap to
// cross-check the configured SupportedSteps against what the service
// itself reports.
func (c *Client) Info(ctx context.Context, serviceName string) (*Info, error) {
	desc, err := c.registry.Resolve(serviceName)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.BaseURL+"/"+serviceName+"/saga/info", nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UnavailableError{ServiceName: serviceName, Cause: err}
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, &UnavailableError{ServiceName: serviceName, Cause: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}
	var info Info
	if err := json.NewDecoder(httpResp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return fmt.Errorf("participant returned status %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		// 4xx is a protocol/contract error. It is returned as an error
		// like any other, so retry.Do retries it under the same backoff
		// policy; 4xx is not exempt from retry.
		return fmt.Errorf("participant rejected request: status %d", httpResp.StatusCode)
	}
	return json.NewDecoder(httpResp.Body).Decode(out)
}
