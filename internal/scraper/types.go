package scraper

import (
	"time"
)

// SourceID identifies a marketplace source
type SourceID string

const (
	SourceFlippa  SourceID = "flippa"
	SourceAcquire SourceID = "acquire"
	SourceMicrons SourceID = "microns"
)

// RevenueUnit tells how to interpret a card's revenue figure. Flippa cards
// carry monthly net profit; Acquire and Microns cards carry annual revenue.
type RevenueUnit string

const (
	RevenueMonthly RevenueUnit = "monthly"
	RevenueAnnual  RevenueUnit = "annual"
)

// ListingStatus is the lifecycle state of a listing on its marketplace
type ListingStatus string

const (
	StatusActive     ListingStatus = "active"
	StatusSold       ListingStatus = "sold"
	StatusUnderOffer ListingStatus = "under_offer"
)

// Block is one rendered text block from an index page, tied to the listing
// URL its DOM elements share. Card extraction consumes blocks so it can be
// tested without a browser.
type Block struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// ListingCard is the partial record extracted from an index-page card.
// Nil pointer fields mean "not found", which is distinct from zero.
type ListingCard struct {
	SourceID    SourceID
	ExternalID  string
	URL         string
	Title       string
	Description string
	Category    string
	Industry    string

	RevenueCents     *int64
	RevenueUnit      RevenueUnit
	AskingPriceCents *int64
	Currency         string

	Country       string
	SiteAgeMonths *int

	HasVerified    bool
	IsConfidential bool

	// Warnings collects non-fatal parse notes (currency conversions,
	// skipped fields) accumulated while building the card.
	Warnings []string
}

// AnnualRevenueCents normalizes the card's revenue figure to an annual
// amount. Monthly figures are multiplied by 12; nil stays nil.
func (c *ListingCard) AnnualRevenueCents() *int64 {
	if c.RevenueCents == nil {
		return nil
	}
	v := *c.RevenueCents
	if c.RevenueUnit == RevenueMonthly {
		v *= 12
	}
	return &v
}

// ListingCreate is the full record produced by a detail extraction pass.
// It is immutable once built and persisted via upsert on
// (SourceID, ExternalID).
type ListingCreate struct {
	SourceID    SourceID
	ExternalID  string
	URL         string
	Title       string
	Category    string
	Description string
	Location    string
	Country     string

	AskingPriceCents   *int64
	AnnualRevenueCents *int64

	Customers    *int
	LaunchedYear *int
	PostedAt     *time.Time

	Status ListingStatus

	// Raw captures every extracted field, including ones without a home in
	// the base schema, for auditability and fallback.
	Raw Payload
}

// ScrapedListing pairs a persisted record with its novelty flag
type ScrapedListing struct {
	Listing ListingCreate
	IsNew   bool
}

// RunStats summarizes one scrape run for logging and notification
type RunStats struct {
	Source       SourceID
	StartedAt    time.Time
	Duration     time.Duration
	TotalSeen    int
	Scraped      int
	FilteredOut  int
	AlreadyKnown int
	NewStored    int
	Updated      int
	Errors       int
	ErrorDetails []string

	// FilterReasons counts fail reasons by their reason string
	FilterReasons map[string]int

	// CountrySeen buckets cards by origin: "us", "intl", "unknown"
	CountrySeen map[string]int
}

// RecordCountry buckets one card's country of origin
func (s *RunStats) RecordCountry(country string) {
	if s.CountrySeen == nil {
		s.CountrySeen = make(map[string]int)
	}
	switch {
	case country == "":
		s.CountrySeen["unknown"]++
	case IsUSCountry(country):
		s.CountrySeen["us"]++
	default:
		s.CountrySeen["intl"]++
	}
}

// RecordFilter counts one filtered-out card
func (s *RunStats) RecordFilter(reason string) {
	s.FilteredOut++
	if s.FilterReasons == nil {
		s.FilterReasons = make(map[string]int)
	}
	s.FilterReasons[reason]++
}

// RecordError counts one scrape error, keeping at most the first 20 details
func (s *RunStats) RecordError(detail string) {
	s.Errors++
	if len(s.ErrorDetails) < 20 {
		s.ErrorDetails = append(s.ErrorDetails, detail)
	}
}
