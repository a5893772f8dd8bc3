package clock

import "time"

// Clock supplies the current time. Channel selection is a pure function
// over an explicit now, so the clock is injected everywhere instead of
// read inline.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }
