package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/viso/pkg/models"
)

// EventType represents different event types in the system
type EventType string

const (
	// EventJobStatusChanged fires on every job record write
	EventJobStatusChanged EventType = "job_status_changed"
	// EventJobAccepted fires when the submission gate accepts a job,
	// before the first durable write exists
	EventJobAccepted EventType = "job_accepted"
)

// JobStatusPayload is the payload for EventJobStatusChanged.
type JobStatusPayload struct {
	JobID     string            `json:"jobId"`
	Status    models.JobStatus  `json:"status"`
	Record    *models.JobRecord `json:"record,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub event bus. Publication is
// observational only: handler failures never affect the job lifecycle.
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
