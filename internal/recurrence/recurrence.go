// Package recurrence computes the next occurrence of a repeating reminder.
// Day-based rules step through the calendar of the instant's location, so
// pass instants in the owner's zone to keep weekdays and wall clock right.
package recurrence

import (
	"time"

	"github.com/NordCoder/Vitalis/internal/domain/notification"
)

const maxDayHops = 7

// Next returns the occurrence after from, or false when the rule does not
// repeat or is unknown.
func Next(from time.Time, rule notification.Repeat) (time.Time, bool) {
	switch rule {
	case notification.RepeatHourly:
		return from.Add(time.Hour), true
	case notification.RepeatDaily:
		return from.AddDate(0, 0, 1), true
	case notification.RepeatWeekly:
		return from.AddDate(0, 0, 7), true
	case notification.RepeatBiweekly:
		return from.AddDate(0, 0, 14), true
	case notification.RepeatMonthly:
		return addMonthClamped(from), true
	case notification.RepeatWeekdays:
		return nextDayWhere(from, isWeekday), true
	case notification.RepeatWeekends:
		return nextDayWhere(from, isWeekend), true
	default:
		return time.Time{}, false
	}
}

func addMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	if last := daysIn(y, m+1, t.Location()); d > last {
		d = last
	}
	return time.Date(y, m+1, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 12, 0, 0, 0, loc).Day()
}

func nextDayWhere(t time.Time, ok func(time.Weekday) bool) time.Time {
	next := t.AddDate(0, 0, 1)
	for i := 0; i < maxDayHops && !ok(next.Weekday()); i++ {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func isWeekday(d time.Weekday) bool { return d != time.Saturday && d != time.Sunday }

func isWeekend(d time.Weekday) bool { return !isWeekday(d) }
