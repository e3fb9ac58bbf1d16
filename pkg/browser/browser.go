// Package browser manages the one long-lived headless browser shared across
// a run. Two of the three transcript strategies need rendered pages; the
// browser process is acquired once, each per-episode use gets a fresh tab
// context, and both are released on every exit path.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NavigationTimeout bounds every page load. Dynamic pages (the archive
// folder in particular) can take tens of seconds to render their listing.
const NavigationTimeout = 60 * time.Second

// Browser owns a headless Chrome process. Close must always be called.
type Browser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Start launches a headless browser. The returned Browser is safe to share
// sequentially across podcasts within a run.
func Start(ctx context.Context) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("headless", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so failures surface here
	// rather than on the first page load.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	b.browserCancel()
	b.allocCancel()
}

// Page returns a fresh tab context scoped to one episode's work. The cancel
// function closes the tab and must run on every exit path to bound memory
// growth across a multi-podcast run.
func (b *Browser) Page() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(b.browserCtx)
}

// NavigateHTML loads a URL in the given tab, waits for dynamic content to
// settle, and returns the rendered page HTML. A timeout is a recoverable
// per-step failure, not a fatal one.
func NavigateHTML(tab context.Context, url string, settle time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(tab, NavigationTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", url, err)
	}
	return html, nil
}

// ClickByText clicks the first button whose text contains the given label,
// then waits for the page to settle. Used to trigger remote UI controls
// such as the archive's sort-by-modified header.
func ClickByText(tab context.Context, label string, settle time.Duration) error {
	ctx, cancel := context.WithTimeout(tab, NavigationTimeout)
	defer cancel()

	sel := fmt.Sprintf(`//button[contains(., %q)]`, label)
	err := chromedp.Run(ctx,
		chromedp.Click(sel, chromedp.BySearch),
		chromedp.Sleep(settle),
	)
	if err != nil {
		return fmt.Errorf("click %q: %w", label, err)
	}
	return nil
}

// Snapshot returns the current rendered HTML of the tab without navigating.
func Snapshot(tab context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(tab, NavigationTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot page: %w", err)
	}
	return html, nil
}
