// Package analysis integrates the external MRI analysis service: a client
// for the upload endpoint and health probe, and the bounded poller that
// watches a submitted job's tracking record until it reaches a terminal
// state. The service itself is opaque; everything here treats it as an HTTP
// boundary that may take minutes to answer.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HealthState is the analyzer's availability as seen by the status widget.
type HealthState string

const (
	StateHealthy   HealthState = "healthy"
	StateUnhealthy HealthState = "unhealthy"
	// StateUnknown means the probe could not reach the service at all. The
	// widget treats this as "frontend-only healthy" rather than an outage.
	StateUnknown HealthState = "unknown"
)

// DefaultProbeTimeout bounds the health probe; the analyze call itself
// deliberately has no client-side timeout.
const DefaultProbeTimeout = 5 * time.Second

// Client talks to the external analysis service.
type Client struct {
	baseURL string
	// analyze may legitimately block for minutes while the service runs
	// the pipeline synchronously, so this client has no timeout.
	httpClient *http.Client
	probe      *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		probe:      &http.Client{Timeout: DefaultProbeTimeout},
	}
}

// WithHTTPClients substitutes both transports, for tests.
func (c *Client) WithHTTPClients(analyze, probe *http.Client) *Client {
	c.httpClient = analyze
	c.probe = probe
	return c
}

type analyzeResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Analyze posts the scan payload and tracking-record identifier to the
// analysis service and returns once the service acknowledges (or rejects)
// the job. An acknowledgment is a 2xx response whose status field is
// "processing" or "success"; anything else is an error.
func (c *Client) Analyze(ctx context.Context, trackingID uuid.UUID, analysisType, filename string, payload io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, payload)
		}
		if err == nil {
			err = mw.WriteField("session_id", trackingID.String())
		}
		if err == nil {
			err = mw.WriteField("analysis_type", analysisType)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", pr)
	if err != nil {
		return fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post scan to analyzer: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ar analyzeResponse
		if json.Unmarshal(body, &ar) == nil && ar.Error != "" {
			return fmt.Errorf("analyzer rejected job: %s", ar.Error)
		}
		return fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var ar analyzeResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return fmt.Errorf("decode analyzer response: %w", err)
	}
	switch ar.Status {
	case "processing", "success":
		return nil
	default:
		return fmt.Errorf("unexpected analyzer status %q", ar.Status)
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health probes the analyzer. Transport failure yields StateUnknown — the
// caller cannot distinguish "analyzer down" from "network partition", so the
// result is advisory, never escalated.
func (c *Client) Health(ctx context.Context) HealthState {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return StateUnknown
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return StateUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StateUnhealthy
	}
	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil || hr.Status != "healthy" {
		return StateUnhealthy
	}
	return StateHealthy
}
