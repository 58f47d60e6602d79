package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since started according to NowFunc.
func Since(started time.Time) time.Duration { return NowFunc().Sub(started) }
