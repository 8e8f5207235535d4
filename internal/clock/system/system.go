// Package system provides the wall-clock implementation of sniffer.Clock.
package system

import "time"

// Clock reads the real system time. Sessions use it for stamping
// progress events and measuring elapsed runtime.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
