// Package system implements the Clock port with the wall clock.
package system

import "time"

// Clock returns the real time in UTC.
type Clock struct{}

// New creates a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current wall clock time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
