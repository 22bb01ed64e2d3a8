package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/use-agent/harvest/models"
)

const apiBase = "http://harvest.test"

func mockClient(t *testing.T) *apiClient {
	t.Helper()
	c := newAPIClient(apiBase, "k1")
	c.pollInterval = time.Millisecond
	httpmock.ActivateNonDefault(c.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestSubmit(t *testing.T) {
	c := mockClient(t)

	httpmock.RegisterResponder(http.MethodPost, apiBase+"/api/v1/harvest", func(req *http.Request) (*http.Response, error) {
		if key := req.Header.Get("X-API-Key"); key != "k1" {
			t.Errorf("X-API-Key = %q", key)
		}
		body, _ := io.ReadAll(req.Body)
		var got models.HarvestRequest
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body: %v", err)
		}
		if got.SearchURL != "https://shop.test/s?q=pumps" || got.MaxEntries != 3 {
			t.Errorf("request = %+v", got)
		}
		return httpmock.NewJsonResponse(http.StatusAccepted, models.HarvestResponse{ID: "job-1", Status: models.JobQueued})
	})

	id, err := c.submit(context.Background(), models.HarvestRequest{SearchURL: "https://shop.test/s?q=pumps", MaxEntries: 3})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "job-1" {
		t.Errorf("id = %q, want job-1", id)
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	c := mockClient(t)

	httpmock.RegisterResponder(http.MethodPost, apiBase+"/api/v1/harvest",
		httpmock.NewJsonResponderOrPanic(http.StatusServiceUnavailable, models.HarvestResponse{
			Status: models.JobFailed,
			Error:  &models.ErrorDetail{Code: models.ErrCodeQueueFull, Message: "harvest queue is full"},
		}))

	_, err := c.submit(context.Background(), models.HarvestRequest{SearchURL: "https://shop.test/s"})
	if err == nil || !strings.Contains(err.Error(), models.ErrCodeQueueFull) {
		t.Errorf("err = %v, want QUEUE_FULL", err)
	}
}

func TestStatus_NotFound(t *testing.T) {
	c := mockClient(t)

	httpmock.RegisterResponder(http.MethodGet, apiBase+"/api/v1/harvest/nope",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"harvest job not found"}}`))

	if _, err := c.status(context.Background(), "nope", true); err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestWait_PollsUntilFinished(t *testing.T) {
	c := mockClient(t)

	scraped := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	polls := 0
	httpmock.RegisterResponder(http.MethodGet, apiBase+"/api/v1/harvest/job-1", func(req *http.Request) (*http.Response, error) {
		st := models.HarvestStatusResponse{ID: "job-1", SearchURL: "https://shop.test/s", Status: models.JobRunning}
		if req.URL.Query().Get("records") == "true" {
			st.Status = models.JobCompleted
			st.Progress = models.JobProgress{Advisory: 1, Attempted: 1, Recorded: 1}
			st.Records = []models.ProductRecord{
				models.NewProductRecord("Pump", "https://shop.test/p/1", map[string]string{"Brand": "Acme"}, scraped),
			}
			return httpmock.NewJsonResponse(http.StatusOK, st)
		}
		polls++
		if polls >= 3 {
			st.Status = models.JobCompleted
		}
		return httpmock.NewJsonResponse(http.StatusOK, st)
	})

	st, err := c.wait(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if polls != 3 {
		t.Errorf("polls = %d, want 3", polls)
	}
	if len(st.Records) != 1 || st.Records[0].Attributes["Brand"] != "Acme" {
		t.Errorf("records = %+v", st.Records)
	}

	out := formatStatus(st)
	for _, want := range []string{"Harvest job-1: completed", "[1] Pump", "Brand: Acme", "2024-03-09 14:05:07"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted status missing %q:\n%s", want, out)
		}
	}
}

func TestWait_Canceled(t *testing.T) {
	c := mockClient(t)

	httpmock.RegisterResponder(http.MethodGet, `=~^`+apiBase+`/api/v1/harvest/job-1`,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, models.HarvestStatusResponse{ID: "job-1", Status: models.JobQueued}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.wait(ctx, "job-1"); err == nil {
		t.Fatal("wait returned nil error after context ended")
	}
}
