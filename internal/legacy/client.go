// Package legacy reads from the internal API of the previous publishing
// system.
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/metrics"
	"github.com/hacknation/dataset-publisher/internal/observability"
	"github.com/hacknation/dataset-publisher/internal/outcome"
)

// endpoints maps resource and action to a path on the legacy host
var endpoints = map[string]map[string]string{
	"dataset": {
		"list":   "/api/3/action/package_list",
		"search": "/api/3/action/package_search",
	},
	"organisation": {
		"list": "/api/3/action/organization_list",
	},
	"topic": {
		"list": "/api/3/action/group_list",
	},
	"licence": {
		"list": "/api/3/action/license_list",
	},
	"status": {
		"show": "/api/3/action/status_show",
	},
}

// Config holds the legacy host and the key sent as Authorization
type Config struct {
	Host   string
	APIKey string
}

// Getter reads a resource from the legacy API
type Getter interface {
	Get(ctx context.Context, resource, action string) outcome.Result[any]
}

// Client is an authenticated JSON reader for the legacy API
type Client struct {
	cfg        Config
	reporter   observability.Reporter
	httpClient *http.Client
}

// NewClient creates a legacy API client. A nil reporter logs failures only.
func NewClient(cfg Config, reporter observability.Reporter) *Client {
	if reporter == nil {
		reporter = observability.LogReporter{}
	}
	return &Client{
		cfg:      cfg,
		reporter: reporter,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// URLFor resolves the endpoint of resource/action against the host
func (c *Client) URLFor(resource, action string) (string, error) {
	path, ok := endpoints[resource][action]
	if !ok {
		return "", fmt.Errorf("no legacy endpoint for %s/%s", resource, action)
	}
	base, err := url.Parse(c.cfg.Host)
	if err != nil {
		return "", fmt.Errorf("invalid legacy host: %w", err)
	}
	ref, _ := url.Parse(path)
	return base.ResolveReference(ref).String(), nil
}

// Get fetches and decodes resource/action. Failures are reported and come
// back as unavailable results.
func (c *Client) Get(ctx context.Context, resource, action string) outcome.Result[any] {
	target, err := c.URLFor(resource, action)
	if err != nil {
		return c.fail(ctx, resource, target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return c.fail(ctx, resource, target, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(ctx, resource, target, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(ctx, resource, target, fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fail(ctx, resource, target, fmt.Errorf("legacy API returned status %d", resp.StatusCode))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return c.fail(ctx, resource, target, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	metrics.LegacyRequestsTotal.WithLabelValues(resourceLabel(resource), "ok").Inc()
	log.Debug().Str("url", target).Msg("Legacy request done")

	return outcome.Available(decoded)
}

func (c *Client) fail(ctx context.Context, resource, target string, err error) outcome.Result[any] {
	metrics.LegacyRequestsTotal.WithLabelValues(resourceLabel(resource), "unavailable").Inc()
	c.reporter.Capture(ctx, err, map[string]string{
		"url":       target,
		"operation": "legacy_get",
	})
	return outcome.Unavailable[any](fmt.Sprintf("failed to make the request to %s", target))
}

// resourceLabel bounds the metric label to resources in the endpoint table
func resourceLabel(resource string) string {
	if _, ok := endpoints[resource]; ok {
		return resource
	}
	return "unknown"
}
