package models

import "time"

// JobStatus is the lifecycle phase of a job record.
type JobStatus string

const (
	// StatusPending is written by the executor before session acquisition.
	StatusPending JobStatus = "PENDING"
	// StatusRunning is written once a remote session has been acquired.
	StatusRunning JobStatus = "RUNNING"
	// StatusSuccess is the terminal state for a completed automation run.
	StatusSuccess JobStatus = "SUCCESS"
	// StatusFailed is the terminal state for any failed automation run.
	StatusFailed JobStatus = "FAILED"

	// StatusErrorChecking is a client-side pseudo-status meaning the status
	// check itself failed. It is never stored and never returned by the
	// server; it exists so pollers can fold "what happened when I asked"
	// into a single status value.
	StatusErrorChecking JobStatus = "ERROR_CHECKING"
)

// statusRank orders lifecycle phases for monotonicity checks. Both terminal
// states share a rank: neither may replace the other.
var statusRank = map[JobStatus]int{
	StatusPending: 0,
	StatusRunning: 1,
	StatusSuccess: 2,
	StatusFailed:  2,
}

// Valid reports whether s is a storable lifecycle status.
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s is SUCCESS or FAILED. Once a record reaches a
// terminal status it never changes again.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether a record currently at from may be rewritten
// with to. Transitions only advance (PENDING -> RUNNING -> terminal, RUNNING
// optional), rewriting the same status is an idempotent upsert, and a
// terminal status can never be replaced by a different one.
func CanTransition(from, to JobStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if from.Terminal() {
		return from == to
	}
	return toRank >= fromRank
}

// ResultPayload holds the fields extracted by a successful automation run.
// It is embedded in JobRecord so the fields flatten into the record on the
// wire. ContentLength is an int64 end to end; it crosses the store and wire
// boundaries as an integer literal and never passes through a float.
type ResultPayload struct {
	PageTitle       string `json:"pageTitle,omitempty"`
	ContentLength   int64  `json:"contentLength,omitempty"`
	PageDescription string `json:"pageDescription,omitempty"`
}

// Populated reports whether the payload carries extracted data.
func (p ResultPayload) Populated() bool {
	return p.PageTitle != "" || p.ContentLength > 0 || p.PageDescription != ""
}

// JobRecord is the durable unit of truth for one job, keyed by JobID.
// The executor is its only writer; everything else reads.
type JobRecord struct {
	JobID        string    `json:"jobId"`
	Status       JobStatus `json:"status"`
	RequestedURL string    `json:"requestedUrl"`

	// ReceivedAt is set on the first write and preserved by the store on
	// every subsequent upsert.
	ReceivedAt time.Time `json:"receivedAt"`
	// LastUpdatedAt is stamped by the store on every write and is
	// non-decreasing for a given JobID.
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`

	// SessionID identifies the remote browser session, absent until
	// acquisition succeeds.
	SessionID string `json:"sessionId,omitempty"`

	ResultPayload

	// ErrorMessage carries human-readable failure detail, present only on
	// FAILED records. The message is prefixed with its failure category,
	// e.g. "timeout: ..." or "provider error: ...".
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// NewJobRecord builds the initial PENDING record for a freshly accepted job.
func NewJobRecord(jobID, url string) *JobRecord {
	now := time.Now().UTC()
	return &JobRecord{
		JobID:         jobID,
		Status:        StatusPending,
		RequestedURL:  url,
		ReceivedAt:    now,
		LastUpdatedAt: now,
	}
}

// SubmitRequest is the submission wire body.
type SubmitRequest struct {
	JobID string `json:"jobId" validate:"required,min=1,max=256"`
	URL   string `json:"url" validate:"required,url"`
}

// SubmitResponse acknowledges an accepted submission. Acceptance does not
// imply the record is queryable yet; the first write happens asynchronously.
type SubmitResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}
