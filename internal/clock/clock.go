package clock

import "time"

// Clock supplies the current time. Injected so sweeps and expiry checks
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }
