package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a user-owned reminder. ScheduledAt is always UTC; Date and
// Time keep the wall-clock request in the owner's timezone.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	Owner       string     `json:"uid"`
	Message     string     `json:"message"`
	Type        Type       `json:"type"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Repeat      Repeat     `json:"repeat"`
	Status      Status     `json:"status"`
	SnoozeCount int        `json:"snoozeCount"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	LastSentAt  *time.Time `json:"lastSentAt,omitempty"`
	JobID       *uuid.UUID `json:"jobId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Guard is the snapshot a conditional update must still match.
// A nil JobID means the row must have no outstanding job.
type Guard struct {
	Status      Status
	SnoozeCount int
	JobID       *uuid.UUID
}

func (n *Notification) Guard() Guard {
	g := Guard{Status: n.Status, SnoozeCount: n.SnoozeCount}
	if n.JobID != nil {
		id := *n.JobID
		g.JobID = &id
	}
	return g
}

type ListQuery struct {
	Type   *Type
	Limit  int
	Cursor *uuid.UUID
}

type Page struct {
	Items       []*Notification `json:"items"`
	HasNextPage bool            `json:"hasNextPage"`
	NextCursor  *uuid.UUID      `json:"nextCursor,omitempty"`
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
