package interfaces

import "context"

// PageConn is a live automation connection to one page context inside a
// remote browser session.
type PageConn interface {
	// Navigate drives the page to url, honoring the ctx deadline
	Navigate(ctx context.Context, url string) error

	// Title returns the rendered document title
	Title(ctx context.Context) (string, error)

	// HTML returns the rendered outer HTML of the document; callers
	// derive the content-length metric from it
	HTML(ctx context.Context) (string, error)

	// StatusCode returns the HTTP status of the main document response,
	// or 0 when it was not observed
	StatusCode() int

	// Close tears down the automation connection. Safe to call more
	// than once.
	Close() error
}

// AutomationDriver establishes automation connections to remote browser
// sessions over their CDP endpoint.
type AutomationDriver interface {
	// Connect attaches to the endpoint and locates or creates a usable
	// page context, honoring the ctx deadline
	Connect(ctx context.Context, connectURL string) (PageConn, error)
}
