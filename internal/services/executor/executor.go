// Package executor drives one accepted job to a terminal record: PENDING,
// session acquisition, RUNNING, remote automation, terminal write, cleanup.
package executor

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/internal/services/automation"
	"github.com/ternarybob/viso/pkg/models"
)

const (
	defaultConnectTimeout    = 60 * time.Second
	defaultNavigationTimeout = 60 * time.Second
	defaultSettleTime        = 2 * time.Second
)

// Service implements interfaces.JobExecutor. Each Execute call is the single
// writer for its job record, so the store observes writes strictly in the
// order PENDING, RUNNING (optional), terminal.
type Service struct {
	storage  interfaces.JobStatusStorage
	sessions interfaces.SessionManager
	driver   interfaces.AutomationDriver
	events   interfaces.EventService
	config   *common.AutomationConfig
	logger   arbor.ILogger
}

// NewService creates a job executor
func NewService(
	storage interfaces.JobStatusStorage,
	sessions interfaces.SessionManager,
	driver interfaces.AutomationDriver,
	events interfaces.EventService,
	config *common.AutomationConfig,
	logger arbor.ILogger,
) interfaces.JobExecutor {
	return &Service{
		storage:  storage,
		sessions: sessions,
		driver:   driver,
		events:   events,
		config:   config,
		logger:   logger,
	}
}

// runScope tracks resources acquired during a run so cleanup can reach them
// on every exit path, including a panic partway through.
type runScope struct {
	session *interfaces.RemoteSession
	conn    interfaces.PageConn
}

// Execute runs one job end to end. It never returns an error and never
// panics past its boundary: every failure becomes a terminal FAILED record.
func (s *Service) Execute(ctx context.Context, jobID, url string) {
	start := time.Now()
	s.logger.Info().Str("job_id", jobID).Str("url", url).Msg("Job execution started")

	rec := models.NewJobRecord(jobID, url)
	if err := s.writeRecord(ctx, rec); err != nil {
		// Keep going: the terminal write below retries the store, and a
		// record that only ever sees its terminal write is still valid
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to write PENDING record")
	}

	scope := &runScope{}
	var outcome Outcome

	// Cleanup is registered first so it runs last: the terminal verdict is
	// durable before any session teardown can fail
	defer s.cleanup(scope, jobID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("job_id", jobID).Msgf("Recovered from panic during job execution: %v", r)
			outcome = panicOutcome(r)
		}
		s.writeTerminal(ctx, rec, outcome)

		s.logger.Info().
			Str("job_id", jobID).
			Str("status", string(outcome.Status)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("Job execution finished")
	}()

	outcome = s.run(ctx, rec, scope)
}

// run performs session acquisition and the automation step, capturing every
// exit as an explicit outcome.
func (s *Service) run(ctx context.Context, rec *models.JobRecord, scope *runScope) Outcome {
	remote, err := s.sessions.Acquire(ctx)
	if err != nil {
		return failureOutcome("session acquisition", err)
	}
	scope.session = remote

	rec.Status = models.StatusRunning
	rec.SessionID = remote.ID
	if err := s.writeRecord(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("job_id", rec.JobID).Msg("Failed to write RUNNING record")
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, s.config.ConnectTimeoutOr(defaultConnectTimeout))
	defer cancelConnect()

	conn, err := s.driver.Connect(connectCtx, remote.ConnectURL)
	if err != nil {
		return failureOutcome("automation connect", err)
	}
	scope.conn = conn

	navCtx, cancelNav := context.WithTimeout(ctx, s.config.NavigationTimeoutOr(defaultNavigationTimeout))
	defer cancelNav()

	if err := conn.Navigate(navCtx, rec.RequestedURL); err != nil {
		return failureOutcome("navigation", err)
	}

	// Give client-side rendering a moment before extraction
	settle := s.config.SettleTimeOr(defaultSettleTime)
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return failureOutcome("navigation", ctx.Err())
	}

	title, err := conn.Title(navCtx)
	if err != nil {
		return failureOutcome("title extraction", err)
	}

	html, err := conn.HTML(navCtx)
	if err != nil {
		return failureOutcome("content extraction", err)
	}

	meta := automation.ExtractMetadata(html)
	if title == "" {
		title = meta.Title
	}

	s.logger.Debug().
		Str("job_id", rec.JobID).
		Str("title", title).
		Int("content_length", len(html)).
		Int("http_status", conn.StatusCode()).
		Msg("Page metadata extracted")

	return successOutcome(models.ResultPayload{
		PageTitle:       title,
		ContentLength:   int64(len(html)),
		PageDescription: meta.Description,
	})
}

// writeTerminal commits the terminal verdict exactly once. Result fields and
// the error message are mutually exclusive on the stored record.
func (s *Service) writeTerminal(ctx context.Context, rec *models.JobRecord, outcome Outcome) {
	rec.Status = outcome.Status
	if outcome.Status == models.StatusSuccess {
		rec.ResultPayload = outcome.Result
		rec.ErrorMessage = ""
	} else {
		rec.ResultPayload = models.ResultPayload{}
		rec.ErrorMessage = outcome.ErrMessage
	}

	if err := s.writeRecord(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("job_id", rec.JobID).Str("status", string(rec.Status)).Msg("Failed to write terminal record")
	}
}

// writeRecord upserts the record and publishes the status transition.
func (s *Service) writeRecord(ctx context.Context, rec *models.JobRecord) error {
	if err := s.storage.Upsert(ctx, rec); err != nil {
		return err
	}

	if s.events != nil {
		snapshot := *rec
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventJobStatusChanged,
			Payload: interfaces.JobStatusPayload{
				JobID:     snapshot.JobID,
				Status:    snapshot.Status,
				Record:    &snapshot,
				Timestamp: time.Now().UTC(),
			},
		})
	}
	return nil
}

// cleanup tears down whatever the run acquired. Failures are logged, never
// propagated: the terminal status is already committed by the time this runs.
func (s *Service) cleanup(scope *runScope, jobID string) {
	if scope.conn != nil {
		if err := scope.conn.Close(); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to close automation connection")
		}
	}
	if scope.session != nil {
		s.sessions.Release(context.Background(), scope.session)
	}
}
