package scraper

import (
	"context"
	"fmt"
	"time"
)

// stubPage is an in-memory Page for scraper tests. Content is keyed by the
// URL Navigate was last called with.
type stubPage struct {
	current   string
	navigated []string

	navErr   map[string]error
	bodyText map[string]string
	html     map[string]string
	titles   map[string]string

	// blocks and counts are keyed by "<url>|<selector>"
	blocks map[string][]Block
	counts map[string]int
}

func newStubPage() *stubPage {
	return &stubPage{
		navErr:   make(map[string]error),
		bodyText: make(map[string]string),
		html:     make(map[string]string),
		titles:   make(map[string]string),
		blocks:   make(map[string][]Block),
		counts:   make(map[string]int),
	}
}

func stubKey(url, selector string) string { return fmt.Sprintf("%s|%s", url, selector) }

func (p *stubPage) Navigate(ctx context.Context, url string) error {
	if err := p.navErr[url]; err != nil {
		return err
	}
	p.current = url
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *stubPage) WaitVisible(ctx context.Context, selector string) error { return nil }

func (p *stubPage) CurrentURL(ctx context.Context) (string, error) { return p.current, nil }

func (p *stubPage) Title(ctx context.Context) (string, error) {
	return p.titles[p.current], nil
}

func (p *stubPage) BodyText(ctx context.Context) (string, error) {
	return p.bodyText[p.current], nil
}

func (p *stubPage) HTML(ctx context.Context) (string, error) {
	return p.html[p.current], nil
}

func (p *stubPage) Blocks(ctx context.Context, selector, ancestor string) ([]Block, error) {
	return p.blocks[stubKey(p.current, selector)], nil
}

func (p *stubPage) CountElements(ctx context.Context, selector string) (int, error) {
	return p.counts[stubKey(p.current, selector)], nil
}

func (p *stubPage) Click(ctx context.Context, selector string) error { return nil }

func (p *stubPage) SendKeys(ctx context.Context, selector, value string) error { return nil }

func (p *stubPage) ScrollToBottom(ctx context.Context) error { return nil }

func (p *stubPage) Sleep(ctx context.Context, d time.Duration) error { return nil }
