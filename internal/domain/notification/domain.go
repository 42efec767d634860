package notification

type Type string

const (
	TypePersonal     Type = "personal"
	TypeAppointments Type = "appointments"
	TypeMedical      Type = "medical"
)

func (t Type) Valid() bool {
	switch t {
	case TypePersonal, TypeAppointments, TypeMedical:
		return true
	}
	return false
}

type Repeat string

const (
	RepeatNever    Repeat = "never"
	RepeatHourly   Repeat = "hourly"
	RepeatDaily    Repeat = "daily"
	RepeatWeekly   Repeat = "weekly"
	RepeatWeekdays Repeat = "weekdays"
	RepeatWeekends Repeat = "weekends"
	RepeatBiweekly Repeat = "biweekly"
	RepeatMonthly  Repeat = "monthly"
)

func (r Repeat) Valid() bool {
	switch r {
	case RepeatNever, RepeatHourly, RepeatDaily, RepeatWeekly,
		RepeatWeekdays, RepeatWeekends, RepeatBiweekly, RepeatMonthly:
		return true
	}
	return false
}

type Status string

const (
	StatusUnread  Status = "unread"
	StatusDone    Status = "done"
	StatusSnoozed Status = "snoozed"
	StatusDeleted Status = "deleted"
)

type Action string

const (
	ActionDone   Action = "done"
	ActionDelete Action = "delete"
	ActionSnooze Action = "snooze"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionDone, ActionDelete, ActionSnooze:
		return a, nil
	}
	return "", ErrInvalidAction
}

// SnoozeEscalation holds successive snooze durations in minutes, indexed by
// SnoozeCount. Once exhausted a snooze closes the notification.
var SnoozeEscalation = [...]int{5, 10, 15}
