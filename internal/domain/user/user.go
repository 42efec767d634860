package user

import "errors"

var ErrNotFound = errors.New("user not found")

const StatusActive = "active"

// User is the slice of the profile the delivery engine reads.
type User struct {
	ID       string
	Timezone string
	FCMToken *string
	Status   string
}

func (u *User) Active() bool { return u.Status == StatusActive }

func (u *User) HasToken() bool { return u.FCMToken != nil && *u.FCMToken != "" }
