// Package backend is the client of the SagaSynth backend HTTP API: dataset sampling, prompt
// testing, dataset generation and the marketplace and bounty listings.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sagasynth/sagasynth/pkg/logger"
)

// DefaultTimeout bounds a single backend request. Generation runs the model over every sample so
// it is generous.
const DefaultTimeout = 5 * time.Minute

// Config holds the configuration of a Client.
type Config struct {
	// Required: BaseURL is the backend root, e.g. "https://api.sagasynth.xyz".
	BaseURL string
	// Optional: Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Optional: Headers are sent with every request.
	Headers map[string]string
	// Optional: Transport is the base transport, instrumented with otelhttp. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	// Optional: Logger is the logger to use. Defaults to a no-op logger.
	Logger logger.Logger
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url %q: scheme must be http or https", c.BaseURL)
	}

	return nil
}

// Client calls the backend API.
type Client struct {
	client *resty.Client
	lggr   logger.Logger
}

// NewClient returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetTransport(otelhttp.NewTransport(cfg.Transport)).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)

	return &Client{
		client: client,
		lggr:   cfg.Logger.Named("backend"),
	}, nil
}

// FetchDataset returns sampleSize rows of the source dataset.
func (c *Client) FetchDataset(ctx context.Context, sampleSize int) ([]DatasetSample, error) {
	if sampleSize <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", sampleSize)
	}

	resp, err := do[fetchDatasetResponse](ctx, c, http.MethodPost, "/api/fetch-dataset", fetchDatasetRequest{SampleSize: sampleSize})
	if err != nil {
		return nil, err
	}

	return resp.Samples, nil
}

// TestPrompt runs the prompt over a few source rows.
func (c *Client) TestPrompt(ctx context.Context, prompt, domain string) ([]SyntheticRecord, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	resp, err := do[testPromptResponse](ctx, c, http.MethodPost, "/api/test-prompt", testPromptRequest{InputText: prompt, Domain: domain})
	if err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// GenerateAndMint generates the full dataset and stores it.
func (c *Client) GenerateAndMint(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generate request: %w", err)
	}

	resp, err := do[GenerateResponse](ctx, c, http.MethodPost, "/api/generate-and-mint", req)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// ListMetadata returns every minted dataset.
func (c *Client) ListMetadata(ctx context.Context) ([]NFTMetadata, error) {
	resp, err := do[metadataResponse](ctx, c, http.MethodGet, "/api/metadata/all", nil)
	if err != nil {
		return nil, err
	}

	return resp.Metadata, nil
}

// ListBounties returns every bounty with a summary.
func (c *Client) ListBounties(ctx context.Context) (*BountyList, error) {
	resp, err := do[BountyList](ctx, c, http.MethodGet, "/api/bounties/all", nil)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// CreateBounty creates a bounty from the backend account.
func (c *Client) CreateBounty(ctx context.Context, req CreateBountyRequest) (*BountyResult, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("bounty title is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, errors.New("bounty amount is required")
	}

	resp, err := do[BountyResult](ctx, c, http.MethodPost, "/api/bounty/create", req)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// AddContributor adds a contributor to a bounty from the backend account.
func (c *Client) AddContributor(ctx context.Context, bountyID uint64, contributor string) (*BountyResult, error) {
	if contributor == "" {
		return nil, errors.New("contributor address is required")
	}

	path := fmt.Sprintf("/api/bounty/%d/add-contributor", bountyID)
	resp, err := do[BountyResult](ctx, c, http.MethodPost, path, addContributorRequest{ContributorAddress: contributor})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// DistributeBounty pays out a bounty from the backend account.
func (c *Client) DistributeBounty(ctx context.Context, bountyID uint64) (*BountyResult, error) {
	path := fmt.Sprintf("/api/bounty/%d/distribute", bountyID)
	resp, err := do[BountyResult](ctx, c, http.MethodPost, path, struct{}{})
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// statusCarrier is implemented by responses embedding Envelope.
type statusCarrier interface {
	status() Envelope
}

// do sends a request and decodes a response of type T. Non 2xx answers and answers with an
// envelope reporting failure are errors carrying the backend message.
func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var (
		out     T
		failure Envelope
	)

	req := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		return out, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}

	c.lggr.Debugw("Backend request", "method", method, "path", path, "status", resp.StatusCode(), "duration", time.Since(start))

	if resp.IsError() {
		if failure.Message != "" {
			return out, fmt.Errorf("%s %s failed: %s", method, path, failure.Message)
		}

		return out, fmt.Errorf("%s %s failed: %s", method, path, resp.Status())
	}

	if sc, ok := any(out).(statusCarrier); ok {
		if env := sc.status(); !env.Success {
			msg := env.Message
			if msg == "" {
				msg = "request was not successful"
			}

			return out, fmt.Errorf("%s %s failed: %s", method, path, msg)
		}
	}

	return out, nil
}
