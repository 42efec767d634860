package notification

import "fmt"

var transitions = map[Status]map[Status]bool{
	StatusUnread: {
		StatusDone:    true,
		StatusSnoozed: true,
		StatusDeleted: true,
	},
	StatusSnoozed: {
		StatusDone:    true,
		StatusSnoozed: true,
		StatusDeleted: true,
	},
}

// Terminal reports whether nothing may be scheduled from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransition(to Status) bool {
	return transitions[s][to]
}

// Transition validates from → to and returns ErrInvalidTransition otherwise.
func Transition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
