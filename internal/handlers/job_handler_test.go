package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/pkg/models"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (f *fakeDispatcher) Enqueue(jobID, url string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.enqueued = append(f.enqueued, jobID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDispatcher) Stop(timeout time.Duration) error { return nil }

type fakeQuery struct {
	records map[string]*models.JobRecord
	getErr  error
	listErr error
}

func (f *fakeQuery) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	return rec, nil
}

func (f *fakeQuery) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.JobRecord{}
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func newTestJobHandler(dispatcher *fakeDispatcher, query *fakeQuery) *JobHandler {
	config := common.NewDefaultConfig()
	return NewJobHandler(dispatcher, query, nil, config, arbor.NewLogger())
}

func submitBody(jobID, url string) *strings.Reader {
	body, _ := json.Marshal(map[string]string{"jobId": jobID, "url": url})
	return strings.NewReader(string(body))
}

func TestSubmitJob_Accepted(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	h := newTestJobHandler(dispatcher, &fakeQuery{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", submitBody("abc", "https://example.com/"))
	rr := httptest.NewRecorder()
	h.SubmitJobHandler(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp models.SubmitResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "abc", resp.JobID)
	assert.Equal(t, []string{"abc"}, dispatcher.enqueued)
}

func TestSubmitJob_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		jobID string
		url   string
	}{
		{"missing job id", "", "https://example.com/"},
		{"missing url", "abc", ""},
		{"relative url", "abc", "/path/only"},
		{"bad scheme", "abc", "ftp://example.com/file"},
		{"not a url", "abc", "not a url at all"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{}
			h := newTestJobHandler(dispatcher, &fakeQuery{})

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", submitBody(tc.jobID, tc.url))
			rr := httptest.NewRecorder()
			h.SubmitJobHandler(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, dispatcher.enqueued, "rejected submission must not reach the dispatcher")
		})
	}
}

func TestSubmitJob_MalformedBody(t *testing.T) {
	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.SubmitJobHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitJob_WrongMethod(t *testing.T) {
	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rr := httptest.NewRecorder()
	h.SubmitJobHandler(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSubmitJob_QueueFull(t *testing.T) {
	dispatcher := &fakeDispatcher{err: interfaces.ErrQueueFull}
	h := newTestJobHandler(dispatcher, &fakeQuery{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", submitBody("abc", "https://example.com/"))
	rr := httptest.NewRecorder()
	h.SubmitJobHandler(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSubmitJob_TestURLRejectedInProduction(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Environment = "production"
	h := NewJobHandler(&fakeDispatcher{}, &fakeQuery{}, nil, config, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", submitBody("abc", "http://localhost:8080/"))
	rr := httptest.NewRecorder()
	h.SubmitJobHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetJob_ReturnsRecord(t *testing.T) {
	rec := models.NewJobRecord("abc", "https://example.com/")
	rec.Status = models.StatusSuccess
	rec.SessionID = "sess-1"
	rec.PageTitle = "Example Domain"
	rec.ContentLength = 1256

	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{records: map[string]*models.JobRecord{"abc": rec}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	rr := httptest.NewRecorder()
	h.GetJobHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got models.JobRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "Example Domain", got.PageTitle)
	assert.Equal(t, int64(1256), got.ContentLength)
}

func TestGetJob_NotFoundIs404(t *testing.T) {
	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{records: map[string]*models.JobRecord{}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/never-submitted", nil)
	rr := httptest.NewRecorder()
	h.GetJobHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "job not found", resp["error"])
}

func TestGetJob_StoreFailureIs500(t *testing.T) {
	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{getErr: fmt.Errorf("store unreachable")})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	rr := httptest.NewRecorder()
	h.GetJobHandler(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetJob_ContentLengthPrecisionOnWire(t *testing.T) {
	const huge = int64(9007199254740993) // 2^53 + 1

	rec := models.NewJobRecord("big", "https://example.com/")
	rec.Status = models.StatusSuccess
	rec.ContentLength = huge

	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{records: map[string]*models.JobRecord{"big": rec}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/big", nil)
	rr := httptest.NewRecorder()
	h.GetJobHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "9007199254740993", "contentLength must survive as an integer literal")

	decoder := json.NewDecoder(strings.NewReader(rr.Body.String()))
	decoder.UseNumber()
	var raw map[string]interface{}
	require.NoError(t, decoder.Decode(&raw))
	n, err := raw["contentLength"].(json.Number).Int64()
	require.NoError(t, err)
	assert.Equal(t, huge, n)
}

func TestListJobs(t *testing.T) {
	records := map[string]*models.JobRecord{
		"a": models.NewJobRecord("a", "https://example.com/"),
		"b": models.NewJobRecord("b", "https://example.com/"),
	}
	h := newTestJobHandler(&fakeDispatcher{}, &fakeQuery{records: records})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=10", nil)
	rr := httptest.NewRecorder()
	h.ListJobsHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Jobs  []models.JobRecord `json:"jobs"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Jobs, 2)
}
