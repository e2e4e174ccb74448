package apiclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is the creation API surface consumed by the API-mixing plugin. Each
// call returns the decoded response body: a mapping for JSON objects, or any
// other decoded shape.
type Client interface {
	CreateScript(ctx context.Context, payload map[string]any) (any, error)
	CreateEpisode(ctx context.Context, payload map[string]any) (any, error)
	CreateCharacter(ctx context.Context, payload map[string]any) (any, error)
	CreateScene(ctx context.Context, payload map[string]any) (any, error)
}

// Config configures the HTTP creation client.
type Config struct {
	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	Debug      bool          `yaml:"debug"`
}

// HTTPClient implements Client against a REST creation API.
type HTTPClient struct {
	client *resty.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a creation client from config.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetDebug(cfg.Debug)

	return &HTTPClient{client: client}
}

func (c *HTTPClient) CreateScript(ctx context.Context, payload map[string]any) (any, error) {
	return c.post(ctx, "/scripts", payload)
}

func (c *HTTPClient) CreateEpisode(ctx context.Context, payload map[string]any) (any, error) {
	return c.post(ctx, "/episodes", payload)
}

func (c *HTTPClient) CreateCharacter(ctx context.Context, payload map[string]any) (any, error) {
	return c.post(ctx, "/characters", payload)
}

func (c *HTTPClient) CreateScene(ctx context.Context, payload map[string]any) (any, error) {
	return c.post(ctx, "/scenes", payload)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload map[string]any) (any, error) {
	response := map[string]any{}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("creation request %s failed: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("creation request %s returned %s", path, resp.Status())
	}

	return response, nil
}
