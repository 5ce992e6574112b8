// Package automation drives pages inside remote browser sessions over their
// CDP endpoint. This package centralizes all chromedp interactions.
package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
)

// Driver implements interfaces.AutomationDriver using chromedp's remote
// allocator. Each Connect attaches to one session; the returned PageConn
// owns the browser context and must be closed by the caller.
type Driver struct {
	logger arbor.ILogger
}

// NewDriver creates an automation driver
func NewDriver(logger arbor.ILogger) interfaces.AutomationDriver {
	return &Driver{logger: logger}
}

// Connect attaches to the session's CDP endpoint and binds a page context.
// The ctx deadline bounds the attach; the connection itself lives until
// Close so the executor's cleanup path controls teardown.
func (d *Driver) Connect(ctx context.Context, connectURL string) (interfaces.PageConn, error) {
	if connectURL == "" {
		return nil, fmt.Errorf("connect url is required")
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), connectURL, chromedp.NoModifyURL)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			d.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	conn := &pageConn{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        d.logger,
	}

	// Capture the HTTP status of the main document response as it arrives
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			conn.setStatusCode(int(resp.Response.Status))
		}
	})

	// Running the first action establishes the websocket connection and
	// locates the session's page target
	if err := conn.run(ctx, network.Enable()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to attach to remote session: %w", err)
	}

	d.logger.Debug().Str("connect_url", connectURL).Msg("Automation connection established")

	return conn, nil
}

// pageConn is a live chromedp connection to one remote page context.
type pageConn struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	logger arbor.ILogger

	mu         sync.Mutex
	statusCode int
	closeOnce  sync.Once
}

// run executes chromedp actions on the browser context, carrying over the
// caller's deadline so a hung remote cannot stall past its bound.
func (c *pageConn) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := c.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(c.browserCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate drives the page to url and waits for the document to load.
func (c *pageConn) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Title returns the rendered document title.
func (c *pageConn) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// HTML returns the rendered outer HTML of the document.
func (c *pageConn) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

// StatusCode returns the HTTP status of the main document response, or 0
// when it was not observed.
func (c *pageConn) StatusCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusCode
}

func (c *pageConn) setStatusCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statusCode == 0 {
		c.statusCode = code
	}
}

// Close tears down the browser context and the underlying websocket. Safe
// to call more than once.
func (c *pageConn) Close() error {
	c.closeOnce.Do(func() {
		c.browserCancel()
		c.allocCancel()
	})
	return nil
}
