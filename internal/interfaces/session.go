// -----------------------------------------------------------------------
// Last Modified: Friday, 21st August 2026 9:12:03 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import "context"

// RemoteSession is a live remote browser session handle.
type RemoteSession struct {
	// ID is the provider-assigned session identifier, recorded on the job
	ID string
	// ConnectURL is the CDP websocket endpoint for automation connections
	ConnectURL string
}

// ProviderSession is the provider's wire representation of a session.
type ProviderSession struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
	Status     string `json:"status,omitempty"`
}

// SessionAPI is the remote browser provider surface used by the session
// manager. Implementations wrap the provider's REST API.
type SessionAPI interface {
	// CreateSession requests a new remote browser session under the
	// given project
	CreateSession(ctx context.Context, projectID string) (*ProviderSession, error)

	// ReleaseSession asks the provider to tear down a session
	ReleaseSession(ctx context.Context, sessionID string) error
}

// SessionManager acquires and tears down remote browser sessions, wrapping
// the provider with credential resolution, timeouts and error translation.
type SessionManager interface {
	// Acquire resolves provider credentials and creates a new remote
	// session. Missing credentials classify as a configuration error,
	// provider rejections as a provider error, deadline hits as a
	// timeout error.
	Acquire(ctx context.Context) (*RemoteSession, error)

	// Release tears down the session best-effort. Safe to call with a
	// nil, partially established or already broken session; it never
	// panics and never propagates an error to the caller.
	Release(ctx context.Context, session *RemoteSession)
}
