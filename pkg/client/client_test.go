package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/viso/pkg/models"
)

func newPollClient(serverURL string, attempts int) *Client {
	return New(serverURL,
		WithPollInterval(5*time.Millisecond),
		WithMaxAttempts(attempts),
	)
}

func TestSubmitJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/jobs", r.URL.Path)

		var req models.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc", req.JobID)
		assert.Equal(t, "https://example.com/", req.URL)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(models.SubmitResponse{Status: "accepted", JobID: req.JobID})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ack, err := c.SubmitJob(context.Background(), "abc", "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "accepted", ack.Status)
	assert.Equal(t, "abc", ack.JobID)
}

func TestAPIKeyHeader(t *testing.T) {
	// The key travels in x-api-key on every request; without a key the
	// header is absent entirely.
	var submitKey, statusKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			submitKey = r.Header.Get("x-api-key")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(models.SubmitResponse{Status: "accepted", JobID: "abc"})
		default:
			statusKey = r.Header.Get("x-api-key")
			json.NewEncoder(w).Encode(models.NewJobRecord("abc", "https://example.com/"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("sk-viso-test"))
	_, err := c.SubmitJob(context.Background(), "abc", "https://example.com/")
	require.NoError(t, err)
	_, err = c.GetStatus(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "sk-viso-test", submitKey)
	assert.Equal(t, "sk-viso-test", statusKey)

	bare := New(srv.URL)
	_, err = bare.GetStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, statusKey)
}

func TestSubmitJob_RejectionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "url must be absolute"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.SubmitJob(context.Background(), "abc", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url must be absolute")
}

func TestGetStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "job not found"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.GetStatus(context.Background(), "missing")
	require.NoError(t, err, "404 is a normal observation, not an error")
	assert.True(t, obs.NotFound)
	assert.Nil(t, obs.Record)
}

func TestGetStatus_ServerErrorBecomesErrorChecking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "failed to read job status"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.GetStatus(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusErrorChecking, obs.Status)
	assert.Contains(t, obs.CheckError, "500")
}

func TestPollUntilTerminal_StopsOnSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)

		rec := models.NewJobRecord("abc", "https://example.com/")
		switch {
		case n == 1:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "job not found"})
			return
		case n < 4:
			rec.Status = models.StatusRunning
		default:
			rec.Status = models.StatusSuccess
			rec.PageTitle = "Example Domain"
			rec.ContentLength = 1256
		}
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := newPollClient(srv.URL, 20)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err)

	assert.False(t, result.Exhausted)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 4, result.Attempts)
	require.NotNil(t, result.Record)
	assert.Equal(t, "Example Domain", result.Record.PageTitle)
	assert.Equal(t, int64(1256), result.Record.ContentLength)
}

func TestPollUntilTerminal_StopsOnFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := models.NewJobRecord("abc", "https://example.com/")
		rec.Status = models.StatusFailed
		rec.ErrorMessage = "timeout: navigation exceeded 60s"
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := newPollClient(srv.URL, 20)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, 1, result.Attempts)
	require.NotNil(t, result.Record)
	assert.Contains(t, result.Record.ErrorMessage, "timeout")
}

func TestPollUntilTerminal_BudgetExhaustedIsNotFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := models.NewJobRecord("abc", "https://example.com/")
		rec.Status = models.StatusRunning
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := newPollClient(srv.URL, 3)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err)

	assert.True(t, result.Exhausted)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, models.StatusRunning, result.Status, "last observed status is preserved")
	assert.False(t, result.Status.Terminal())
}

func TestPollUntilTerminal_NotFoundKeepsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "job not found"})
	}))
	defer srv.Close()

	c := newPollClient(srv.URL, 5)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err)

	assert.True(t, result.Exhausted)
	assert.Equal(t, 5, result.Attempts)
	assert.Nil(t, result.Record)
}

func TestPollUntilTerminal_ErrorCheckingStopsEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "store unreachable"})
	}))
	defer srv.Close()

	c := newPollClient(srv.URL, 10)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, models.StatusErrorChecking, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.Exhausted)
	assert.Contains(t, result.CheckError, "store unreachable")
}

func TestPollUntilTerminal_CancellableWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := models.NewJobRecord("abc", "https://example.com/")
		rec.Status = models.StatusPending
		json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	c := New(srv.URL, WithPollInterval(10*time.Second), WithMaxAttempts(50))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.PollUntilTerminal(ctx, "abc")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "wait must be interruptible")
}

func TestPollUntilTerminal_TransportMissKeepsPolling(t *testing.T) {
	// Server that is immediately closed: every request fails at transport level
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newPollClient(srv.URL, 3)
	result, err := c.PollUntilTerminal(context.Background(), "abc")
	require.NoError(t, err, "transport misses are transient, not fatal")
	assert.True(t, result.Exhausted)
	assert.Equal(t, 3, result.Attempts)
}
