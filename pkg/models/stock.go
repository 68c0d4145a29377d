// Package models defines the records finboard shapes out of AI backend
// responses. They carry no behaviour beyond JSON mapping and ordering.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeRange is a chart window token accepted by the stock lookup.
type TimeRange string

const (
	Range1D  TimeRange = "1D"
	Range5D  TimeRange = "5D"
	Range1M  TimeRange = "1M"
	Range6M  TimeRange = "6M"
	RangeYTD TimeRange = "YTD"
	Range1Y  TimeRange = "1Y"
	Range5Y  TimeRange = "5Y"
)

// DefaultTimeRange is used when a lookup does not name a range.
const DefaultTimeRange = Range1M

// TimeRanges lists every accepted range in display order.
var TimeRanges = []TimeRange{Range1D, Range5D, Range1M, Range6M, RangeYTD, Range1Y, Range5Y}

// ParseTimeRange validates a range token. Matching is case-insensitive and an
// empty string yields DefaultTimeRange.
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultTimeRange, nil
	}
	for _, r := range TimeRanges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid time range %q (want one of 1D, 5D, 1M, 6M, YTD, 1Y, 5Y)", s)
}

// Intraday reports whether the range is charted with intraday points.
func (r TimeRange) Intraday() bool { return r == Range1D }

// StockChartPoint is one price observation on the stock chart.
type StockChartPoint struct {
	DateTime string          `json:"dateTime"` // ISO 8601 as written by the model
	Price    decimal.Decimal `json:"price"`
}

// Time parses DateTime. The second return is false when the model wrote
// something that is not a recognisable timestamp.
func (p StockChartPoint) Time() (time.Time, bool) {
	return ParseTimestamp(p.DateTime)
}

// StockRecord is the single-stock overview shown on the detail page.
type StockRecord struct {
	CompanyName   string            `json:"companyName"`
	Ticker        string            `json:"ticker"`
	Price         Text              `json:"price"`
	Change        Text              `json:"change"`
	PercentChange Text              `json:"percentChange"`
	IsPositive    bool              `json:"isPositive"`
	MarketCap     Text              `json:"marketCap"`
	PERatio       Text              `json:"peRatio"`
	DividendYield Text              `json:"dividendYield"`
	Open          NullText          `json:"open"`
	High          NullText          `json:"high"`
	Low           NullText          `json:"low"`
	Analysis      string            `json:"analysis"`
	ChartData     []StockChartPoint `json:"chartData"`
}

// SortChart orders ChartData ascending by timestamp. Points whose timestamp
// cannot be parsed keep their relative order after all parseable points.
// Sorting an already sorted series is a no-op.
func (s *StockRecord) SortChart() {
	sort.SliceStable(s.ChartData, func(i, j int) bool {
		ti, oki := s.ChartData[i].Time()
		tj, okj := s.ChartData[j].Time()
		switch {
		case oki && okj:
			return ti.Before(tj)
		case oki:
			return true
		default:
			return false
		}
	})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO 8601 variants models tend to produce.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
