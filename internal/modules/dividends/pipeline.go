// Package dividends turns raw payout events into quality-flagged,
// currency-converted records with range-coverage metadata.
package dividends

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stockgate/internal/domain"
)

// Per-event quality warnings. The strings double as the aggregated issue
// set, so they stay generic enough to deduplicate across events.
const (
	warnInvalidDate    = "event date missing or unparseable"
	warnMissingAmount  = "dividend amount missing"
	warnNoPrice        = "no close price at or before event date"
	warnStalePrice     = "close price taken from an earlier session"
	warnAnomalousYield = "yield above 20% sanity threshold"
)

// anomalousYieldPercent is a sanity check, not a hard limit.
const anomalousYieldPercent = 20.0

// RateResolver is the FX surface the pipeline depends on. Absent rates are
// not errors; the converted fields are simply omitted.
type RateResolver interface {
	Rate(ctx context.Context, from, to string) (float64, bool)
}

// EnrichedEvent is one payout record after enrichment. Pointer fields are
// omitted from the JSON payload when the underlying value could not be
// determined.
type EnrichedEvent struct {
	Date                 string   `json:"date"`
	AmountPerShare       *float64 `json:"amountPerShare"`
	Currency             string   `json:"currency"`
	PriceAtEvent         *float64 `json:"priceAtEvent,omitempty"`
	PriceDate            string   `json:"priceDate,omitempty"`
	YieldPercent         *float64 `json:"yieldPercent,omitempty"`
	AmountUSD            *float64 `json:"amountUsd,omitempty"`
	AmountTHB            *float64 `json:"amountThb,omitempty"`
	PriceUSD             *float64 `json:"priceUsd,omitempty"`
	PriceTHB             *float64 `json:"priceThb,omitempty"`
	FxRateUsed           *float64 `json:"fxRateUsed,omitempty"`
	QualityWarnings      []string `json:"qualityWarnings"`
	WithinRequestedRange bool     `json:"withinRequestedRange"`
}

// Quality summarizes how well the returned events cover the requested
// range, plus the deduplicated set of per-event issues.
type Quality struct {
	RequestedRange     string   `json:"requestedRange"`
	ActualRange        string   `json:"actualRange"`
	RequestedRangeDays int      `json:"requestedRangeDays"`
	ActualRangeDays    int      `json:"actualRangeDays"`
	CoverageRatio      float64  `json:"coverageRatio"`
	FlaggedEvents      int      `json:"flaggedEvents"`
	Issues             []string `json:"issues"`
}

// Report is the pipeline's output: enriched events sorted most recent
// first, plus the coverage summary.
type Report struct {
	Events  []EnrichedEvent `json:"events"`
	Quality Quality         `json:"quality"`
}

// Pipeline enriches raw dividend events against a price series and the FX
// resolver.
type Pipeline struct {
	fx  RateResolver
	log zerolog.Logger
}

// NewPipeline creates an enrichment pipeline.
func NewPipeline(fx RateResolver, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		fx:  fx,
		log: log.With().Str("component", "dividend_enrichment").Logger(),
	}
}

// legs holds the USD and THB conversion rates for one source currency.
type legs struct {
	toUSD float64
	okUSD bool
	toTHB float64
	okTHB bool
}

// Enrich processes raw events against history and the requested [start,
// end] range. history may be nil when no price series could be resolved;
// every event is then flagged as priceless.
func (p *Pipeline) Enrich(ctx context.Context, events []domain.DividendEvent, history *domain.History, start, end time.Time) *Report {
	enriched := make([]EnrichedEvent, 0, len(events))
	for _, raw := range events {
		enriched = append(enriched, p.enrichOne(raw, history, start, end))
	}

	p.convert(ctx, enriched)

	// Most recent first; events with unparseable dates sink to the end.
	sort.SliceStable(enriched, func(i, j int) bool {
		return enriched[i].Date > enriched[j].Date
	})

	return &Report{
		Events:  enriched,
		Quality: p.summarize(enriched, start, end),
	}
}

func (p *Pipeline) enrichOne(raw domain.DividendEvent, history *domain.History, start, end time.Time) EnrichedEvent {
	event := EnrichedEvent{
		Date:            raw.Date,
		AmountPerShare:  raw.AmountPerShare,
		Currency:        raw.Currency,
		QualityWarnings: []string{},
	}

	eventDate, dateErr := time.Parse("2006-01-02", raw.Date)
	if dateErr != nil {
		event.QualityWarnings = append(event.QualityWarnings, warnInvalidDate)
	} else {
		eventDate = eventDate.UTC()
		event.WithinRequestedRange = !eventDate.Before(start) && !eventDate.After(end)
	}

	if raw.AmountPerShare == nil || !isFinite(*raw.AmountPerShare) {
		event.AmountPerShare = nil
		event.QualityWarnings = append(event.QualityWarnings, warnMissingAmount)
	}

	if dateErr == nil {
		if point, found := nearestCloseAtOrBefore(history, eventDate); found {
			price := point.Close
			event.PriceAtEvent = &price
			event.PriceDate = point.Date.Format("2006-01-02")
			if point.Date.Before(eventDate) {
				// A true same-day close was unavailable.
				event.QualityWarnings = append(event.QualityWarnings, warnStalePrice)
			}
		} else {
			event.QualityWarnings = append(event.QualityWarnings, warnNoPrice)
		}
	}

	if event.AmountPerShare != nil && event.PriceAtEvent != nil && *event.PriceAtEvent > 0 {
		yield := *event.AmountPerShare / *event.PriceAtEvent * 100
		event.YieldPercent = &yield
		if yield > anomalousYieldPercent {
			event.QualityWarnings = append(event.QualityWarnings, warnAnomalousYield)
		}
	}

	return event
}

// convert resolves each distinct source currency's USD and THB legs in
// parallel, then attaches the converted amounts. All legs complete (or are
// abandoned) before any event is touched.
func (p *Pipeline) convert(ctx context.Context, events []EnrichedEvent) {
	currencies := make(map[string]struct{})
	for _, event := range events {
		if event.Currency != "" {
			currencies[event.Currency] = struct{}{}
		}
	}
	if len(currencies) == 0 {
		return
	}

	var mu sync.Mutex
	resolved := make(map[string]legs, len(currencies))

	group, groupCtx := errgroup.WithContext(ctx)
	for currency := range currencies {
		currency := currency
		group.Go(func() error {
			var l legs
			l.toUSD, l.okUSD = p.fx.Rate(groupCtx, currency, "USD")
			l.toTHB, l.okTHB = p.fx.Rate(groupCtx, currency, "THB")
			mu.Lock()
			resolved[currency] = l
			mu.Unlock()
			return nil
		})
	}
	// Leg resolution never returns an error; absence is soft.
	_ = group.Wait()

	for i := range events {
		event := &events[i]
		l, ok := resolved[event.Currency]
		if !ok {
			continue
		}
		if l.okUSD {
			if event.AmountPerShare != nil {
				event.AmountUSD = scaled(*event.AmountPerShare, l.toUSD)
			}
			if event.PriceAtEvent != nil {
				event.PriceUSD = scaled(*event.PriceAtEvent, l.toUSD)
			}
		}
		if l.okTHB {
			rate := l.toTHB
			event.FxRateUsed = &rate
			if event.AmountPerShare != nil {
				event.AmountTHB = scaled(*event.AmountPerShare, l.toTHB)
			}
			if event.PriceAtEvent != nil {
				event.PriceTHB = scaled(*event.PriceAtEvent, l.toTHB)
			}
		}
	}
}

// summarize computes range coverage over the in-range events and the
// deduplicated issue set over all of them.
func (p *Pipeline) summarize(events []EnrichedEvent, start, end time.Time) Quality {
	quality := Quality{
		RequestedRange:     formatRange(start, end),
		RequestedRangeDays: inclusiveDays(start, end),
		Issues:             []string{},
	}

	seen := make(map[string]struct{})
	var earliest, latest string
	for _, event := range events {
		if len(event.QualityWarnings) > 0 {
			quality.FlaggedEvents++
		}
		for _, warning := range event.QualityWarnings {
			if _, dup := seen[warning]; !dup {
				seen[warning] = struct{}{}
				quality.Issues = append(quality.Issues, warning)
			}
		}
		if !event.WithinRequestedRange {
			continue
		}
		if earliest == "" || event.Date < earliest {
			earliest = event.Date
		}
		if latest == "" || event.Date > latest {
			latest = event.Date
		}
	}
	sort.Strings(quality.Issues)

	if earliest == "" {
		quality.ActualRange = "none"
		return quality
	}

	first, err1 := time.Parse("2006-01-02", earliest)
	last, err2 := time.Parse("2006-01-02", latest)
	if err1 != nil || err2 != nil {
		quality.ActualRange = "none"
		return quality
	}

	quality.ActualRange = formatRange(first, last)
	quality.ActualRangeDays = inclusiveDays(first, last)
	if quality.RequestedRangeDays > 0 {
		ratio := float64(quality.ActualRangeDays) / float64(quality.RequestedRangeDays)
		quality.CoverageRatio = math.Min(1, math.Max(0, ratio))
	}
	return quality
}

// nearestCloseAtOrBefore finds the most recent history point not after
// date. The series is sorted ascending, so a binary search suffices.
func nearestCloseAtOrBefore(history *domain.History, date time.Time) (domain.HistoryPoint, bool) {
	if history == nil || len(history.Points) == 0 {
		return domain.HistoryPoint{}, false
	}
	points := history.Points
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].Date.After(date)
	})
	if idx == 0 {
		return domain.HistoryPoint{}, false
	}
	return points[idx-1], true
}

func scaled(value, rate float64) *float64 {
	converted := value * rate
	return &converted
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatRange(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func inclusiveDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
