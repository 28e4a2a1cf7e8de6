package session

import "time"

// Session is a live refresh session as recorded in the store.
type Session struct {
	UserID    string
	SessionID string
	IssuedAt  time.Time
}
