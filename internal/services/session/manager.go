package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/internal/services/browserbase"
)

// Manager implements interfaces.SessionManager over the provider API. It
// resolves credentials at acquire time, so keys seeded into the store after
// startup are picked up without a restart.
type Manager struct {
	config  *common.ProviderConfig
	secrets interfaces.SecretResolver
	logger  arbor.ILogger

	// newClient builds the provider client for a resolved API key
	newClient func(apiKey string) interfaces.SessionAPI

	mu     sync.Mutex
	api    interfaces.SessionAPI
	apiKey string
}

// NewManager creates a session manager for the configured provider
func NewManager(config *common.ProviderConfig, secrets interfaces.SecretResolver, logger arbor.ILogger) interfaces.SessionManager {
	m := &Manager{
		config:  config,
		secrets: secrets,
		logger:  logger,
	}
	m.newClient = func(apiKey string) interfaces.SessionAPI {
		return browserbase.NewClient(apiKey,
			browserbase.WithBaseURL(config.BaseURL),
			browserbase.WithLogger(logger),
			browserbase.WithRateLimit(requestsPerSecond(config.RateLimitOr(time.Second))),
		)
	}
	return m
}

// Acquire resolves provider credentials and creates a new remote session.
// Missing credentials come back wrapping ErrConfiguration, provider failures
// ErrProvider, and deadline hits ErrTimeout.
func (m *Manager) Acquire(ctx context.Context) (*interfaces.RemoteSession, error) {
	apiKey, err := m.secrets.Resolve(ctx, m.config.APIKeyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not configured", ErrConfiguration, m.config.APIKeyName)
	}

	projectID, err := m.secrets.Resolve(ctx, m.config.ProjectIDName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not configured", ErrConfiguration, m.config.ProjectIDName)
	}

	timeout := m.config.RequestTimeoutOr(30 * time.Second)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	provider, err := m.clientFor(apiKey).CreateSession(reqCtx, projectID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: session create exceeded %s", ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	m.logger.Info().
		Str("session_id", provider.ID).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Remote session acquired")

	return &interfaces.RemoteSession{
		ID:         provider.ID,
		ConnectURL: provider.ConnectURL,
	}, nil
}

// Release tears down the session. Failures are logged and swallowed, and it
// never panics. The release call runs on its own deadline because the job
// context is often already cancelled by the time cleanup runs.
func (m *Manager) Release(ctx context.Context, session *interfaces.RemoteSession) {
	if session == nil || session.ID == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Str("session_id", session.ID).Msgf("Recovered from panic during session release: %v", r)
		}
	}()

	timeout := m.config.ReleaseTimeoutOr(10 * time.Second)
	relCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	apiKey, err := m.secrets.Resolve(relCtx, m.config.APIKeyName)
	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Cannot release session, credentials unavailable")
		return
	}

	if err := m.clientFor(apiKey).ReleaseSession(relCtx, session.ID); err != nil {
		m.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to release remote session")
		return
	}

	m.logger.Debug().Str("session_id", session.ID).Msg("Remote session released")
}

// clientFor returns the provider client for apiKey, rebuilding it when the
// key changes. Reusing the client keeps its rate limiter effective across
// acquisitions.
func (m *Manager) clientFor(apiKey string) interfaces.SessionAPI {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.api == nil || m.apiKey != apiKey {
		m.api = m.newClient(apiKey)
		m.apiKey = apiKey
	}
	return m.api
}

// requestsPerSecond converts a minimum request interval into the provider
// client's requests-per-second rate.
func requestsPerSecond(interval time.Duration) int {
	if interval <= 0 {
		return browserbase.DefaultRateLimit
	}
	rps := int(time.Second / interval)
	if rps < 1 {
		rps = 1
	}
	return rps
}
