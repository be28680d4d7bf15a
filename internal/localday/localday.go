// Package localday converts instants into the user's calendar day.
//
// A day is represented as a time.Time at 00:00 UTC of that calendar date, so
// day arithmetic never crosses a DST transition.
package localday

import (
	"strings"
	"time"

	"fitDietAPI/internal/apperr"
)

const Layout = "2006-01-02"

var ErrUnknownTimezone = apperr.New(apperr.KindValidation, "invalid_timezone", "unknown timezone")

var ErrInvalidDate = apperr.New(apperr.KindValidation, "invalid_date", "date must be YYYY-MM-DD")

// Location resolves an IANA zone name. An empty name means UTC.
func Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrUnknownTimezone
	}
	return loc, nil
}

// Of returns the calendar day of t as observed in loc.
func Of(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize drops the clock part of a day value, keeping its calendar date.
func Normalize(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func Format(day time.Time) string {
	return day.Format(Layout)
}

// Between returns the number of calendar days from a to b (negative when b is
// before a).
func Between(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)).Hours() / 24)
}
