package utils

import (
	"time"
)

// ET is the US Eastern time zone the NYSE and Nasdaq trade in.
var ET *time.Location

func init() {
	var err error
	ET, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST if tz database is not available
		ET = time.FixedZone("EST", -5*60*60)
	}
}

// NowET returns the current time in US Eastern time.
func NowET() time.Time {
	return time.Now().In(ET)
}

// MarketOpenTime returns the regular session open (9:30 AM ET) for a given date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, ET)
}

// MarketCloseTime returns the regular session close (4:00 PM ET) for a given date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, ET)
}

// PreMarketStart returns the pre-market session start (4:00 AM ET).
func PreMarketStart(date time.Time) time.Time {
	d := date.In(ET)
	return time.Date(d.Year(), d.Month(), d.Day(), 4, 0, 0, 0, ET)
}

// IsTradingDay reports whether t falls on a weekday. Exchange holidays are
// not tracked; the backend reports the last close on those days.
func IsTradingDay(t time.Time) bool {
	wd := t.In(ET).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsMarketOpenAt checks if the regular session would be open at t.
func IsMarketOpenAt(t time.Time) bool {
	if !IsTradingDay(t) {
		return false
	}
	return !t.Before(MarketOpenTime(t)) && t.Before(MarketCloseTime(t))
}

// MarketStatusAt returns the session label for t.
func MarketStatusAt(t time.Time) string {
	t = t.In(ET)
	if !IsTradingDay(t) {
		return "CLOSED (Weekend)"
	}

	switch {
	case t.Before(PreMarketStart(t)):
		return "CLOSED"
	case t.Before(MarketOpenTime(t)):
		return "PRE-MARKET"
	case t.Before(MarketCloseTime(t)):
		return "OPEN"
	case t.Hour() < 20:
		return "AFTER-HOURS"
	default:
		return "CLOSED"
	}
}

// MarketStatus returns the current market status string.
func MarketStatus() string {
	return MarketStatusAt(NowET())
}
