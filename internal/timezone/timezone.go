// Package timezone converts between a user's wall-clock and UTC instants
// using the IANA database. Nothing here reads the process-local zone.
package timezone

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidDate     = errors.New("invalid date, want YYYY-MM-DD")
	ErrInvalidTime     = errors.New("invalid time, want HH:mm")
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// probe is how far from a wall time zone offsets are sampled; it covers
	// the widest UTC offsets with room for one transition.
	probe = 24 * time.Hour
)

func Load(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// ParseDate accepts YYYY-MM-DD or an ISO timestamp and keeps its date part.
func ParseDate(date string) (y int, m time.Month, d int, err error) {
	if i := strings.IndexByte(date, 'T'); i >= 0 {
		date = date[:i]
	}
	t, perr := time.Parse(DateLayout, strings.TrimSpace(date))
	if perr != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	y, m, d = t.Date()
	return y, m, d, nil
}

func ParseClock(clock string) (h, min int, err error) {
	t, perr := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
	}
	return t.Hour(), t.Minute(), nil
}

func LocalMidnightToUTC(date, tz string) (time.Time, error) {
	return LocalDateTimeToUTC(date, "00:00", tz)
}

// LocalDateTimeToUTC resolves a wall time in tz to a UTC instant.
// A wall time skipped by a spring-forward gap keeps the offset in force
// before the gap, which lands it after the gap by the gap length.
// A wall time repeated by a fall-back overlap resolves to the earlier instant.
func LocalDateTimeToUTC(date, clock, tz string) (time.Time, error) {
	loc, err := Load(tz)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	h, mi, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return resolve(y, m, d, h, mi, loc), nil
}

func resolve(y int, m time.Month, d, h, mi int, loc *time.Location) time.Time {
	wall := time.Date(y, m, d, h, mi, 0, 0, time.UTC)

	_, before := wall.Add(-probe).In(loc).Zone()
	_, after := wall.Add(probe).In(loc).Zone()

	// Larger offset first: it yields the earlier instant.
	offsets := []int{before, after}
	if after > before {
		offsets = []int{after, before}
	}
	for _, off := range offsets {
		at := wall.Add(-time.Duration(off) * time.Second)
		if sameWall(at.In(loc), wall) {
			return at.UTC()
		}
	}
	return wall.Add(-time.Duration(before) * time.Second).UTC()
}

func sameWall(local, wall time.Time) bool {
	ly, lm, ld := local.Date()
	wy, wm, wd := wall.Date()
	return ly == wy && lm == wm && ld == wd &&
		local.Hour() == wall.Hour() && local.Minute() == wall.Minute()
}

func UTCToLocalDate(instant time.Time, tz string) (string, error) {
	loc, err := Load(tz)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(DateLayout), nil
}
