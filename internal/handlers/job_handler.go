package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/pkg/models"
)

// validate is the package-level validator shared by all handlers
var validate = validator.New()

// JobHandler serves the submission gate and the status query API.
type JobHandler struct {
	dispatcher interfaces.JobDispatcher
	query      interfaces.StatusQuery
	events     interfaces.EventService
	config     *common.Config
	logger     arbor.ILogger
}

// NewJobHandler creates a job handler
func NewJobHandler(
	dispatcher interfaces.JobDispatcher,
	query interfaces.StatusQuery,
	events interfaces.EventService,
	config *common.Config,
	logger arbor.ILogger,
) *JobHandler {
	return &JobHandler{
		dispatcher: dispatcher,
		query:      query,
		events:     events,
		config:     config,
		logger:     logger,
	}
}

// SubmitJobHandler accepts a new job: POST /api/jobs with {"jobId","url"}.
// Validation happens before any durable write; acceptance returns 202 and
// the record appears asynchronously once the executor's first write lands.
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validateSubmission(&req); err != nil {
		h.logger.Debug().Err(err).Str("job_id", req.JobID).Msg("Submission rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dispatcher.Enqueue(req.JobID, req.URL); err != nil {
		if errors.Is(err, interfaces.ErrQueueFull) {
			h.logger.Warn().Str("job_id", req.JobID).Msg("Submission rejected, dispatch queue full")
			WriteError(w, http.StatusServiceUnavailable, "server is busy, retry later")
			return
		}
		h.logger.Error().Err(err).Str("job_id", req.JobID).Msg("Failed to enqueue job")
		WriteError(w, http.StatusInternalServerError, "failed to accept job")
		return
	}

	h.logger.Info().Str("job_id", req.JobID).Str("url", req.URL).Msg("Job accepted")

	if h.events != nil {
		h.events.Publish(r.Context(), interfaces.Event{
			Type: interfaces.EventJobAccepted,
			Payload: interfaces.JobStatusPayload{
				JobID:     req.JobID,
				Timestamp: time.Now().UTC(),
			},
		})
	}

	WriteJSON(w, http.StatusAccepted, models.SubmitResponse{
		Status: "accepted",
		JobID:  req.JobID,
	})
}

// GetJobHandler returns the record for GET /api/jobs/{jobId}. A missing
// record is 404, which pollers treat as "not yet visible", never as a
// failed job; a store failure is 500.
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	rec, err := h.query.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to read job status")
		return
	}

	WriteJSON(w, http.StatusOK, rec)
}

// ListJobsHandler returns recent records for GET /api/jobs?limit=N.
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	recs, err := h.query.List(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  recs,
		"count": len(recs),
	})
}

// validateSubmission rejects malformed submissions before anything durable
// happens. The job id is an opaque string; the URL must be an absolute
// HTTP(S) URI, and test URLs are rejected in production.
func (h *JobHandler) validateSubmission(req *models.SubmitRequest) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			if field.Field() == "JobID" {
				return fmt.Errorf("jobId is required and must be at most 256 characters")
			}
			return fmt.Errorf("url must be a valid URL")
		}
		return fmt.Errorf("invalid submission")
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("url must be absolute")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include a host")
	}

	if !h.config.AllowTestURLs() && common.IsTestURL(req.URL) {
		return fmt.Errorf("test URLs are not allowed in production")
	}

	return nil
}
