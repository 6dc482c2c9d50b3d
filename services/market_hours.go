package services

import (
	"fmt"
	"time"
)

// HolidayCalendar decides whether a calendar date is a market holiday. The
// calendar is injected; the gate never computes holidays itself.
type HolidayCalendar interface {
	IsHoliday(t time.Time) bool
}

// MapHolidayCalendar is a HolidayCalendar backed by a set of YYYY-MM-DD dates.
type MapHolidayCalendar map[string]bool

func (c MapHolidayCalendar) IsHoliday(t time.Time) bool {
	return c[t.Format("2006-01-02")]
}

// NewUSHolidayCalendar returns the NYSE full-closure dates for 2025-2026.
func NewUSHolidayCalendar() MapHolidayCalendar {
	dates := []string{
		"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18",
		"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01",
		"2025-11-27", "2025-12-25",
		"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03",
		"2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07",
		"2026-11-26", "2026-12-25",
	}

	calendar := make(MapHolidayCalendar, len(dates))
	for _, d := range dates {
		calendar[d] = true
	}
	return calendar
}

// MarketHoursConfig sets the session clock bounds in the market's local
// timezone. Both bounds are inclusive.
type MarketHoursConfig struct {
	Timezone    string
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
}

// DefaultMarketHoursConfig is the regular NYSE session, 09:30-16:00 Eastern.
func DefaultMarketHoursConfig() MarketHoursConfig {
	return MarketHoursConfig{
		Timezone:    "America/New_York",
		OpenHour:    9,
		OpenMinute:  30,
		CloseHour:   16,
		CloseMinute: 0,
	}
}

// MarketHoursGate decides whether the market is open at a given instant:
// closed on holidays, closed on weekends, otherwise open iff the wall-clock
// time falls within the configured session bounds.
type MarketHoursGate struct {
	location *time.Location
	calendar HolidayCalendar
	openSec  int
	closeSec int
}

// NewMarketHoursGate creates a gate for the configured market timezone.
func NewMarketHoursGate(cfg MarketHoursConfig, calendar HolidayCalendar) (*MarketHoursGate, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", cfg.Timezone, err)
	}

	return &MarketHoursGate{
		location: loc,
		calendar: calendar,
		openSec:  cfg.OpenHour*3600 + cfg.OpenMinute*60,
		closeSec: cfg.CloseHour*3600 + cfg.CloseMinute*60,
	}, nil
}

// Location returns the market timezone.
func (g *MarketHoursGate) Location() *time.Location {
	return g.location
}

// IsOpen reports whether the market is open at t.
func (g *MarketHoursGate) IsOpen(t time.Time) bool {
	local := t.In(g.location)

	if g.calendar != nil && g.calendar.IsHoliday(local) {
		return false
	}

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return sec >= g.openSec && sec <= g.closeSec
}
