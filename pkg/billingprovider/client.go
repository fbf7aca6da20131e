package billingprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fitcheckhq/fitcheck-backend/pkg/config"
	"github.com/fitcheckhq/fitcheck-backend/pkg/enums"
)

const (
	defaultFetchTimeout = 2 * time.Second
	defaultRetryBackoff = 150 * time.Millisecond
)

const responseBodyReadLimit int64 = 64 * 1024

var (
	errBaseURLRequired = errors.New("billing provider base url is required")
)

// Snapshot is the provider's point-in-time view of a tenant subscription.
// CurrentPeriodEnd may be nil when the provider omits it.
type Snapshot struct {
	Status           enums.ProviderStatus
	PlanName         string
	CurrentPeriodEnd *time.Time
}

// Client queries the billing provider's current-subscription endpoint.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	fetchTimeout time.Duration
	maxRetries   uint64
	retryBackoff time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the provider client from configuration.
func NewClient(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		fetchTimeout: cfg.FetchTimeout,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
	}
	if client.fetchTimeout <= 0 {
		client.fetchTimeout = defaultFetchTimeout
	}
	if client.retryBackoff <= 0 {
		client.retryBackoff = defaultRetryBackoff
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.fetchTimeout}
	}

	return client, nil
}

type subscriptionResponse struct {
	Subscription *struct {
		Status           string     `json:"status"`
		PlanName         string     `json:"planName"`
		CurrentPeriodEnd *time.Time `json:"currentPeriodEnd"`
	} `json:"subscription"`
}

// FetchCurrentSubscription returns the provider's snapshot for the tenant, or
// (nil, nil) when the provider has no active subscription on file. Transport
// failures and 5xx responses are retried with backoff; if retries are
// exhausted the error is returned so the caller can decide how to degrade.
func (c *Client) FetchCurrentSubscription(ctx context.Context, tenantID string) (*Snapshot, error) {
	trimmed := strings.TrimSpace(tenantID)
	if trimmed == "" {
		return nil, errors.New("tenant id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/tenants/%s/subscription", c.baseURL, url.PathEscape(trimmed))

	var snapshot *Snapshot
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, err := c.fetchOnce(ctx, endpoint)
		if err != nil {
			return err
		}
		snapshot = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.RetryableError(fmt.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload subscriptionResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	if payload.Subscription == nil {
		return nil, nil
	}

	return &Snapshot{
		Status:           enums.ProviderStatus(strings.ToUpper(strings.TrimSpace(payload.Subscription.Status))),
		PlanName:         payload.Subscription.PlanName,
		CurrentPeriodEnd: payload.Subscription.CurrentPeriodEnd,
	}, nil
}
