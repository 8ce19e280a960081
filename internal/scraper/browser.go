package scraper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"bizfinder/config"
	apperrors "bizfinder/pkg/errors"
)

// Page is the browser surface the scrapers drive. Extractors consume the
// text and blocks it returns, so tests can substitute a stub page.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Blocks(ctx context.Context, selector, ancestor string) ([]Block, error)
	CountElements(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, value string) error
	ScrollToBottom(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Session owns a single browser tab for the duration of a run. All
// navigation happens in place, so element state from a previous page is
// invalid after Navigate. Not safe for concurrent use.
type Session struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	opTimeout     time.Duration
}

// knownChromePaths are probed when CHROME_PATH is not set
var knownChromePaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/opt/homebrew/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// NewSession launches a browser and opens the tab shared by the whole run.
// The session dies with ctx, so a top-level interrupt tears it down.
func NewSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(cfg.ChromePath); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}
	if cfg.ProxyAddr != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyAddr))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser process up front so a missing binary fails fast
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, apperrors.NewNetwork("browser", "failed to start browser", err)
	}

	return &Session{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		opTimeout:     cfg.PageTimeout,
	}, nil
}

// findChromeBinary returns the configured path or the first known location
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	for _, path := range knownChromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Close tears down the tab and the browser process
func (s *Session) Close() {
	s.cancelBrowser()
	s.cancelAlloc()
}

// run executes chromedp actions against the shared tab with the
// per-operation timeout
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.browserCtx, s.opTimeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads a URL in the shared tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return apperrors.NewNetwork("browser", fmt.Sprintf("failed to navigate to %s", url), err)
	}
	return nil
}

// WaitVisible waits for a selector to become visible
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// CurrentURL returns the tab's current location
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Title returns the document title
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// BodyText returns the rendered text of the whole page
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// HTML returns the page's outer HTML
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Blocks collects the link URL and rendered text of every element matching
// selector. When ancestor is non-empty, the text is taken from the closest
// matching ancestor so link-only elements still yield their card's text.
func (s *Session) Blocks(ctx context.Context, selector, ancestor string) ([]Block, error) {
	js := fmt.Sprintf(`
		(function() {
			var out = [];
			var els = document.querySelectorAll(%q);
			for (var i = 0; i < els.length; i++) {
				var el = els[i];
				var href = el.href || '';
				if (!href) {
					var a = el.querySelector('a[href]');
					if (a) href = a.href;
				}
				var container = el;
				var anc = %q;
				if (anc) {
					var c = el.closest(anc);
					if (c) container = c;
				}
				out.push({url: href, text: container.innerText || ''});
			}
			return out;
		})()`, selector, ancestor)

	var blocks []Block
	if err := s.run(ctx, chromedp.Evaluate(js, &blocks)); err != nil {
		return nil, apperrors.NewParsing("browser", fmt.Sprintf("failed to collect blocks for %s", selector), err)
	}
	return blocks, nil
}

// CountElements returns how many elements match the selector
func (s *Session) CountElements(ctx context.Context, selector string) (int, error) {
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	var count int
	if err := s.run(ctx, chromedp.Evaluate(js, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

// Click clicks the first element matching the selector
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// SendKeys types a value into the first element matching the selector
func (s *Session) SendKeys(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SendKeys(selector, value, chromedp.ByQuery))
}

// ScrollToBottom scrolls the window to the document end
func (s *Session) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// Sleep waits in-page, letting lazy content settle
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return s.run(ctx, chromedp.Sleep(d))
}
