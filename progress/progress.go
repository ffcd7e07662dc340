// Package progress carries pull progress to callers: a Tracker receives
// typed events, and Bands maps each pull phase's internal 0-100 job
// progress into its slice of the combined percentage.
package progress

// Tracker receives progress events during image operations.
// Implementations must be safe for concurrent use from multiple goroutines.
type Tracker interface {
	OnEvent(any)
}

// NewTracker creates a Tracker from a typed callback function.
// The caller works with a concrete event type; the Tracker interface
// stays non-generic so it can cross package boundaries.
func NewTracker[E any](fn func(E)) Tracker {
	return funcTracker(func(v any) { fn(v.(E)) })
}

type funcTracker func(any)

func (f funcTracker) OnEvent(e any) { f(e) }

// Nop is a no-op tracker for callers that don't need progress.
var Nop Tracker = funcTracker(func(any) {})
