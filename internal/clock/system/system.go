// Package system provides a real clock implementation.
package system

import "time"

// Clock implements record.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to milliseconds, matching the
// precision stored in the records file.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
