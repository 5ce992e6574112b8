// Package client implements the polling side of the job API: submit a job,
// then poll its status at a fixed interval until a terminal verdict is
// observed or the attempt budget runs out.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/pkg/models"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 50
	defaultTimeout      = 30 * time.Second
)

// Client talks to a viso server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
	logger       arbor.ILogger
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		logger:       arbor.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitJob submits (jobID, url) for asynchronous execution. A nil error
// means the server accepted the job; the record becomes queryable once the
// executor's first write lands.
func (c *Client) SubmitJob(ctx context.Context, jobID, url string) (*models.SubmitResponse, error) {
	body, err := json.Marshal(models.SubmitRequest{JobID: jobID, URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("submission rejected: %s", readError(resp))
	}

	var ack models.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode acknowledgment: %w", err)
	}

	c.logger.Info().Str("job_id", ack.JobID).Msg("Job submitted")
	return &ack, nil
}

// StatusResult is one status-check observation. Exactly one of the three
// shapes holds: Found with a Record, NotFound (no record yet), or
// Status == ERROR_CHECKING with CheckError describing why the check failed.
type StatusResult struct {
	Status     models.JobStatus
	Record     *models.JobRecord
	NotFound   bool
	CheckError string
}

// GetStatus performs one status check. A 404 is reported as NotFound, never
// as an error: the record may simply not be visible yet. A store failure on
// the server (HTTP 500) folds into the ERROR_CHECKING pseudo-status. Only
// client-side faults (bad request construction, transport failure) return a
// non-nil error.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec models.JobRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode job record: %w", err)
		}
		return &StatusResult{Status: rec.Status, Record: &rec}, nil

	case http.StatusNotFound:
		return &StatusResult{NotFound: true}, nil

	default:
		return &StatusResult{
			Status:     models.StatusErrorChecking,
			CheckError: fmt.Sprintf("status check returned HTTP %d: %s", resp.StatusCode, readError(resp)),
		}, nil
	}
}

// PollResult is the outcome of a polling run.
type PollResult struct {
	// Record is the last record observed, nil if none was ever visible
	Record *models.JobRecord
	// Status is the last observed status; ERROR_CHECKING if the final
	// attempt's check itself failed
	Status models.JobStatus
	// Attempts is how many status checks were made
	Attempts int
	// Exhausted is true when the attempt budget ran out without observing
	// a terminal status. The job may still be running; callers can poll
	// again later with the same job id.
	Exhausted bool
	// CheckError carries detail when Status is ERROR_CHECKING
	CheckError string
}

// PollUntilTerminal polls the job's status until a terminal verdict or the
// ERROR_CHECKING pseudo-status is observed, or the attempt budget runs out.
// Not-found and transient transport misses keep the poll going. The wait
// between attempts is cancellable through ctx.
func (c *Client) PollUntilTerminal(ctx context.Context, jobID string) (*PollResult, error) {
	result := &PollResult{}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result.Attempts = attempt

		obs, err := c.GetStatus(ctx, jobID)
		if err != nil {
			// Transport-level miss: keep polling, the server may come back
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Status check unreachable")
		} else if obs.NotFound {
			c.logger.Debug().Int("attempt", attempt).Msg("Job not visible yet")
		} else {
			result.Status = obs.Status
			if obs.Record != nil {
				result.Record = obs.Record
			}

			if obs.Status == models.StatusErrorChecking {
				result.CheckError = obs.CheckError
				c.logger.Error().Str("detail", obs.CheckError).Msg("Status check failed")
				return result, nil
			}
			if obs.Status.Terminal() {
				c.logger.Info().
					Str("job_id", jobID).
					Str("status", string(obs.Status)).
					Int("attempts", attempt).
					Msg("Job reached terminal state")
				return result, nil
			}

			c.logger.Debug().
				Str("status", string(obs.Status)).
				Int("attempt", attempt).
				Msg("Job still in progress")
		}

		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}

	result.Exhausted = true
	c.logger.Warn().
		Str("job_id", jobID).
		Int("attempts", result.Attempts).
		Msg("Polling budget exhausted before terminal state")
	return result, nil
}

func (c *Client) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

// readError extracts the error message from a JSON error body, falling back
// to the raw body text.
func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
