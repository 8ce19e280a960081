package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"bizfinder/internal/scraper"
	"bizfinder/logger"
	apperrors "bizfinder/pkg/errors"
)

// at most this many listings are itemized per message; the rest are
// summarized as a count
const maxItemizedListings = 10

// SlackNotifier posts messages to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	log        *logger.Logger
}

// NewSlackNotifier creates a Slack notifier for the given webhook URL
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        logger.ForNotifier(),
	}
}

type slackMessage struct {
	Text string `json:"text"`
}

// NotifyNewListings announces newly discovered listings, itemizing the
// first few
func (n *SlackNotifier) NotifyNewListings(ctx context.Context, source scraper.SourceID, listings []scraper.ScrapedListing) error {
	if len(listings) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":mag: *%d new listing(s) on %s*\n", len(listings), source)

	for i, sl := range listings {
		if i >= maxItemizedListings {
			fmt.Fprintf(&b, "…and %d more\n", len(listings)-maxItemizedListings)
			break
		}
		b.WriteString(formatListing(&sl.Listing))
	}

	return n.post(ctx, b.String())
}

// formatListing renders one listing as a Slack mrkdwn line
func formatListing(l *scraper.ListingCreate) string {
	var parts []string
	if l.AskingPriceCents != nil {
		parts = append(parts, fmt.Sprintf("ask $%s", dollars(*l.AskingPriceCents)))
	}
	if l.AnnualRevenueCents != nil {
		parts = append(parts, fmt.Sprintf("rev $%s/yr", dollars(*l.AnnualRevenueCents)))
	}
	if l.Category != "" {
		parts = append(parts, l.Category)
	}

	line := fmt.Sprintf("• <%s|%s>", l.URL, l.Title)
	if len(parts) > 0 {
		line += " — " + strings.Join(parts, ", ")
	}
	return line + "\n"
}

// NotifyRunSummary posts the end-of-run statistics
func (n *SlackNotifier) NotifyRunSummary(ctx context.Context, stats *scraper.RunStats) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s run finished* in %s\n", stats.Source, stats.Duration.Round(time.Second))
	fmt.Fprintf(&b, "seen %d · scraped %d · new %d · updated %d · filtered %d · known %d · errors %d\n",
		stats.TotalSeen, stats.Scraped, stats.NewStored, stats.Updated,
		stats.FilteredOut, stats.AlreadyKnown, stats.Errors)

	if len(stats.FilterReasons) > 0 {
		reasons := make([]string, 0, len(stats.FilterReasons))
		for reason := range stats.FilterReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, "  - %s: %d\n", reason, stats.FilterReasons[reason])
		}
	}
	if len(stats.ErrorDetails) > 0 {
		b.WriteString("errors:\n")
		for _, detail := range stats.ErrorDetails {
			fmt.Fprintf(&b, "  - %s\n", detail)
		}
	}

	return n.post(ctx, b.String())
}

// post sends one message to the webhook
func (n *SlackNotifier) post(ctx context.Context, text string) error {
	payload, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return apperrors.NewNotification("slack", "failed to encode message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return apperrors.NewNotification("slack", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return apperrors.NewNotification("slack", "webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewNotification("slack",
			fmt.Sprintf("webhook returned status %d", resp.StatusCode), nil)
	}
	n.log.Debug().Int("chars", len(text)).Msg("Posted notification")
	return nil
}

// dollars renders cents as whole dollars with thousands separators
func dollars(cents int64) string {
	d := cents / 100
	s := fmt.Sprintf("%d", d)
	if d < 0 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
