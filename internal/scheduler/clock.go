package scheduler

import "time"

// Clock is the time source for delayed commands. Tests inject a fake.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}
