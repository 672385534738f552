package connect

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lakeprobe/lakeprobe/pkg/httputil"
)

var (
	// ErrConnectorNotFound is returned when the control plane has no
	// connector under the requested name.
	ErrConnectorNotFound = errors.New("connector not found")
)

// APIError is an unexpected response from the control plane: any status the
// operation does not treat as success. It is propagated immediately, never
// retried, and never confused with transport failures or readiness timeouts.
type APIError struct {
	Op     string
	Body   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("connect: %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Config holds control plane connection settings.
type Config struct {
	// URL of the Kafka Connect REST API, eg http://localhost:8083
	URL string `json:"url" mapstructure:"url"`
	// Timeout for individual REST calls.
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	// PollInterval between readiness checks.
	PollInterval time.Duration `json:"pollInterval,omitempty" mapstructure:"pollInterval"`
}

// Client talks to a Kafka Connect REST control plane.
type Client struct {
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a control plane client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	cfg.Timeout = cmp.Or(cfg.Timeout, 10*time.Second)
	cfg.PollInterval = cmp.Or(cfg.PollInterval, 3*time.Second)
	return &Client{cfg: cfg, logger: logger}
}

// Register submits a connector definition to POST /connectors. Both 201
// Created and 409 Conflict count as success so that re-running bring-up is
// idempotent; created reports which of the two happened. Any other status is
// surfaced as *APIError.
func (c *Client) Register(ctx context.Context, def Definition) (created bool, err error) {
	if def.Name == "" {
		return false, fmt.Errorf("connector definition has no name")
	}

	reqCfg := httputil.DefaultRequestConfig(http.MethodPost, c.cfg.URL+"/connectors")
	reqCfg.Timeout = c.cfg.Timeout
	reqCfg.RetryEnabled = false // status codes carry meaning here
	reqCfg.Logger = nil
	reqCfg.ResponseHandler = func(*http.Response) error { return nil } // acceptance decided below

	resp, err := httputil.Request(ctx, reqCfg, def)
	if err != nil {
		return false, fmt.Errorf("register connector %q: %w", def.Name, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		c.logger.Info("connector created", zap.String("name", def.Name))
		return true, nil
	case http.StatusConflict:
		c.logger.Info("connector already exists", zap.String("name", def.Name))
		return false, nil
	default:
		return false, &APIError{
			Op:     fmt.Sprintf("register %s", def.Name),
			Status: resp.StatusCode,
			Body:   string(resp.Body),
		}
	}
}

// Status fetches GET /connectors/{name}/status.
func (c *Client) Status(ctx context.Context, name string) (*Status, error) {
	reqCfg := httputil.DefaultRequestConfig(http.MethodGet, c.statusURL(name))
	reqCfg.Timeout = c.cfg.Timeout
	reqCfg.RetryEnabled = false
	reqCfg.Logger = nil
	reqCfg.ResponseHandler = func(*http.Response) error { return nil }

	resp, err := httputil.Request(ctx, reqCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("status of connector %q: %w", name, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		var st Status
		if err := resp.JSON(&st); err != nil {
			return nil, fmt.Errorf("status of connector %q: %w", name, err)
		}
		return &st, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("status of connector %q: %w", name, ErrConnectorNotFound)
	default:
		return nil, &APIError{
			Op:     fmt.Sprintf("status %s", name),
			Status: resp.StatusCode,
			Body:   string(resp.Body),
		}
	}
}

// List fetches the names of all registered connectors.
func (c *Client) List(ctx context.Context) ([]string, error) {
	reqCfg := httputil.DefaultRequestConfig(http.MethodGet, c.cfg.URL+"/connectors")
	reqCfg.Timeout = c.cfg.Timeout
	reqCfg.Logger = nil

	resp, err := httputil.Request(ctx, reqCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	var names []string
	if err := resp.JSON(&names); err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	return names, nil
}

// Delete removes a connector. A missing connector is not an error: the goal
// state is reached either way.
func (c *Client) Delete(ctx context.Context, name string) error {
	reqCfg := httputil.DefaultRequestConfig(http.MethodDelete, c.cfg.URL+"/connectors/"+url.PathEscape(name))
	reqCfg.Timeout = c.cfg.Timeout
	reqCfg.RetryEnabled = false
	reqCfg.Logger = nil
	reqCfg.ResponseHandler = func(*http.Response) error { return nil }

	resp, err := httputil.Request(ctx, reqCfg, nil)
	if err != nil {
		return fmt.Errorf("delete connector %q: %w", name, err)
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound, http.StatusAccepted:
		c.logger.Info("connector deleted", zap.String("name", name))
		return nil
	default:
		return &APIError{
			Op:     fmt.Sprintf("delete %s", name),
			Status: resp.StatusCode,
			Body:   string(resp.Body),
		}
	}
}

func (c *Client) statusURL(name string) string {
	return c.cfg.URL + "/connectors/" + url.PathEscape(name) + "/status"
}
