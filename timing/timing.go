// Package timing provides the monotonic clock used by the tracing engine.
package timing

import "time"

// Time is a timestamp or duration in nanoseconds. Timestamps are measured
// from an arbitrary monotonic epoch, so only differences between two Time
// values are meaningful.
type Time int64

// Std converts a Time to a standard library duration.
func (t Time) Std() time.Duration {
	return time.Duration(t)
}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() Time
}

// SystemClock is a TimeTeller backed by the process monotonic clock. All
// SystemClock instances share one epoch, so their readings are comparable
// across threads.
type SystemClock struct{}

var processStart = time.Now()

// CurrentTime returns the time elapsed since the process-wide epoch.
func (SystemClock) CurrentTime() Time {
	return Time(time.Since(processStart))
}
