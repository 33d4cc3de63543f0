package util

import "time"

type Clock interface {
	Now() time.Time
}

// UTCClock returns the current time in UTC. Record timestamps are always written in UTC.
type UTCClock struct{}

func (c *UTCClock) Now() time.Time { return time.Now().UTC() }

type DummyClock struct {
	T time.Time
}

func (c *DummyClock) Now() time.Time {
	return c.T
}
