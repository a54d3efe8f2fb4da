// Package catalog talks to the external CKAN-style metadata catalog.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/observability"
	"github.com/hacknation/dataset-publisher/internal/outcome"
)

const (
	patchPath = "/api/3/action/package_patch"
	showPath  = "/api/3/action/package_show"
)

// SyncClient pushes dataset metadata to the catalog
type SyncClient struct {
	baseURL    string
	apiKey     string
	reporter   observability.Reporter
	httpClient *http.Client
}

// NewSyncClient creates a catalog client. A nil reporter logs failures only.
func NewSyncClient(baseURL, apiKey string, reporter observability.Reporter) *SyncClient {
	if reporter == nil {
		reporter = observability.LogReporter{}
	}
	return &SyncClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		reporter: reporter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type extra struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// patchRequest carries only the fields the wizard has collected so far
type patchRequest struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Title     string     `json:"title,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	LicenseID string     `json:"license_id,omitempty"`
	OwnerOrg  string     `json:"owner_org,omitempty"`
	State     string     `json:"state,omitempty"`
	Extras    []extra    `json:"extras,omitempty"`
	Resources []resource `json:"resources,omitempty"`
}

type resource struct {
	URL     string `json:"url"`
	Name    string `json:"name"`
	Format  string `json:"format,omitempty"`
	EndDate string `json:"end_date,omitempty"`
}

type actionResponse struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result"`
	Error   map[string]any `json:"error,omitempty"`
}

// Sync patches the catalog record of ds. It never returns an error: any
// failure is reported and comes back as an unavailable result.
func (c *SyncClient) Sync(ctx context.Context, ds *models.Dataset) outcome.Result[models.SyncReceipt] {
	url := c.baseURL + patchPath

	jsonData, err := json.Marshal(buildPatch(ds))
	if err != nil {
		return c.fail(ctx, url, ds.UUID, fmt.Errorf("failed to marshal package: %w", err))
	}

	log.Debug().
		Str("url", url).
		Str("uuid", ds.UUID).
		Msg("Syncing dataset to catalog")

	pkg, err := c.call(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return c.fail(ctx, url, ds.UUID, err)
	}

	receipt := receiptOf(pkg)
	log.Info().
		Str("uuid", ds.UUID).
		Str("catalog_id", receipt.CatalogID).
		Int("resources", len(pkg.Resources())).
		Msg("Dataset synced to catalog")

	return outcome.Available(receipt)
}

// Show looks up the catalog record of a dataset by its UUID
func (c *SyncClient) Show(ctx context.Context, datasetUUID string) outcome.Result[models.SyncReceipt] {
	url := c.baseURL + showPath + "?id=" + neturl.QueryEscape(datasetUUID)

	pkg, err := c.call(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.fail(ctx, url, datasetUUID, err)
	}
	return outcome.Available(receiptOf(pkg))
}

// call sends an authenticated action request and unwraps the package record
func (c *SyncClient) call(ctx context.Context, method, url string, body io.Reader) (*Package, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response actionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !response.Success {
		return nil, fmt.Errorf("catalog rejected request: %v", response.Error)
	}

	return NewPackage(response.Result), nil
}

func receiptOf(pkg *Package) models.SyncReceipt {
	return models.SyncReceipt{
		CatalogID: pkg.String("id"),
		Name:      pkg.String("name"),
		Modified:  pkg.String("metadata_modified"),
	}
}

func (c *SyncClient) fail(ctx context.Context, url, datasetUUID string, err error) outcome.Result[models.SyncReceipt] {
	c.reporter.Capture(ctx, err, map[string]string{
		"url":          url,
		"dataset_uuid": datasetUUID,
		"operation":    "catalog_sync",
	})
	return outcome.Unavailable[models.SyncReceipt](err.Error())
}

func buildPatch(ds *models.Dataset) patchRequest {
	req := patchRequest{
		ID:        ds.UUID,
		Name:      ds.Name,
		Title:     ds.Title,
		Notes:     ds.Description,
		LicenseID: ds.LicenceCode,
		OwnerOrg:  strconv.FormatInt(ds.OrganisationID, 10),
	}
	if ds.Published() {
		req.State = "active"
	} else {
		req.State = "draft"
	}

	if ds.Summary != "" {
		req.Extras = append(req.Extras, extra{Key: "summary", Value: ds.Summary})
	}
	if ds.TopicID != nil {
		req.Extras = append(req.Extras, extra{Key: "theme-primary", Value: strconv.FormatInt(*ds.TopicID, 10)})
	}
	if ds.Frequency != nil {
		req.Extras = append(req.Extras, extra{Key: "update_frequency", Value: string(*ds.Frequency)})
	}
	for i, loc := range []string{ds.Location1, ds.Location2, ds.Location3} {
		if loc != "" {
			req.Extras = append(req.Extras, extra{Key: fmt.Sprintf("geographic_coverage_%d", i+1), Value: loc})
		}
	}

	for _, l := range ds.Links {
		r := resource{URL: l.URL, Name: l.Name, Format: l.Format}
		if l.EndDate != nil {
			r.EndDate = l.EndDate.Format(dateLayout)
		}
		req.Resources = append(req.Resources, r)
	}
	return req
}
