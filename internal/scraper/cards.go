package scraper

import (
	"fmt"
	"slices"
	"strings"
)

// LabelDirection tells which adjacent line carries a label's value.
// Flippa and Acquire render the value after the label; Microns renders it
// before.
type LabelDirection int

const (
	ValueAfter LabelDirection = iota
	ValueBefore
)

// LabelRule binds label tokens (lowercase, matched against a whole trimmed
// line) to a field setter. Setters fill only empty fields so the first
// block seen for a listing wins.
type LabelRule struct {
	Labels []string
	Apply  func(card *ListingCard, value string)
}

// CardRules configures card extraction for one marketplace. Sources differ
// only in data: the scanning and merge algorithm is shared.
type CardRules struct {
	Source      SourceID
	RevenueUnit RevenueUnit

	// ExtractID validates a block URL and extracts the listing identifier.
	// Blocks whose URL does not resolve to an ID are decorative UI.
	ExtractID func(url string) (string, bool)

	// MinLines is the minimum line count for a block to count as a card
	MinLines int

	Direction LabelDirection
	Labels    []LabelRule

	// DataMarkers mark a block as data-bearing. A data-bearing block clears
	// a previously-seen confidential flag for the same listing, since a
	// teaser card may precede the real card.
	DataMarkers         []string
	ConfidentialMarkers []string
	VerifiedMarkers     []string

	// FillExtra runs source-specific heuristics (title, description,
	// location look-ahead) after label scanning.
	FillExtra func(card *ListingCard, lines []string)
}

// ExtractCards merges raw page blocks into deduplicated cards, one per
// unique external ID, in first-seen order. Individual malformed blocks are
// skipped and reported as warnings, never aborting the page.
func ExtractCards(blocks []Block, rules CardRules) ([]ListingCard, []string) {
	type acc struct {
		card    *ListingCard
		hasData bool
	}

	byID := make(map[string]*acc)
	var order []string
	var warnings []string

	for _, block := range blocks {
		if block.URL == "" {
			continue
		}
		id, ok := rules.ExtractID(block.URL)
		if !ok {
			continue
		}

		lines := SplitLines(block.Text)
		if len(lines) < rules.MinLines {
			continue
		}

		a := byID[id]
		if a == nil {
			a = &acc{card: &ListingCard{
				SourceID:    rules.Source,
				ExternalID:  id,
				URL:         block.URL,
				RevenueUnit: rules.RevenueUnit,
			}}
			byID[id] = a
			order = append(order, id)
		}
		card := a.card

		// A data-bearing block overrides an earlier confidential teaser
		if containsAny(block.Text, rules.DataMarkers) {
			card.IsConfidential = false
			a.hasData = true
		} else if containsAny(block.Text, rules.ConfidentialMarkers) && !a.hasData {
			card.IsConfidential = true
		}

		if containsAny(block.Text, rules.VerifiedMarkers) {
			card.HasVerified = true
		}

		scanLabels(card, lines, rules)

		if rules.FillExtra != nil {
			rules.FillExtra(card, lines)
		}
	}

	cards := make([]ListingCard, 0, len(order))
	for _, id := range order {
		card := byID[id].card
		for _, w := range card.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", id, w))
		}
		cards = append(cards, *card)
	}
	return cards, warnings
}

// scanLabels walks the lines applying label rules against adjacent values
func scanLabels(card *ListingCard, lines []string, rules CardRules) {
	for i, line := range lines {
		var value string
		switch rules.Direction {
		case ValueAfter:
			if i+1 >= len(lines) {
				continue
			}
			value = lines[i+1]
		case ValueBefore:
			if i == 0 {
				continue
			}
			value = lines[i-1]
		}

		lower := strings.ToLower(strings.TrimSpace(line))
		for _, rule := range rules.Labels {
			if slices.Contains(rule.Labels, lower) {
				rule.Apply(card, value)
			}
		}
	}
}

// SplitLines splits text into trimmed, non-empty lines
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// containsAny reports whether text contains any of the markers
func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
