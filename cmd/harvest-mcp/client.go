package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/harvest/models"
)

// apiClient talks to the harvest HTTP API.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

// submit queues a harvest and returns the job ID.
func (c *apiClient) submit(ctx context.Context, req models.HarvestRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var resp models.HarvestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/harvest", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("[%s] %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("harvest job creation failed")
	}
	return resp.ID, nil
}

// status fetches a job. Records are included only when withRecords is set.
func (c *apiClient) status(ctx context.Context, id string, withRecords bool) (*models.HarvestStatusResponse, error) {
	path := fmt.Sprintf("/api/v1/harvest/%s?records=%t", id, withRecords)

	var resp models.HarvestStatusResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" && resp.Error != nil {
		return nil, fmt.Errorf("[%s] %s", resp.Error.Code, resp.Error.Message)
	}
	return &resp, nil
}

// wait polls a job until it leaves the queued and running states or ctx ends.
func (c *apiClient) wait(ctx context.Context, id string) (*models.HarvestStatusResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			st, err := c.status(ctx, id, false)
			if err != nil {
				return nil, err
			}
			if st.Status == models.JobQueued || st.Status == models.JobRunning {
				continue
			}
			return c.status(ctx, id, true)
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
