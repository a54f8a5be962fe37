// ABOUTME: Core domain types for machine-generated tunes
// ABOUTME: Defines the Tune record, transient generation events, and the group naming contract

package tune

import (
	"fmt"
	"time"
)

// Tune is one user-initiated generation request and its accumulated output.
// The ID is assigned exactly once by the store at creation and is immutable.
// ABC is append-only from the moment generation starts until RNNFinished is
// set, after which it is immutable.
type Tune struct {
	ID          int64
	ModelName   string
	Temp        float64
	Seed        int
	Meter       string
	Key         string
	PrimeTokens string
	Requested   time.Time
	RNNStarted  *time.Time
	RNNFinished *time.Time
	ABC         string
}

// InProgress reports whether generation has started but not yet finished.
func (t *Tune) InProgress() bool {
	return t.RNNStarted != nil && t.RNNFinished == nil
}

// EventKind distinguishes the two messages the worker adapter publishes.
type EventKind string

const (
	// EventNewABC carries the full accumulated ABC after a new increment.
	EventNewABC EventKind = "new_abc"
	// EventComplete carries the final ABC once generation has finished.
	EventComplete EventKind = "complete"
)

// Event is a transient generation progress message on the token channel.
// It always carries the complete accumulated text, never a delta, so a
// subscriber that missed an event catches up fully on the next one.
type Event struct {
	Kind   EventKind
	TuneID int64
	ABC    string
}

// GroupName returns the token channel group for a tune. This is the naming
// contract between the generation service (publisher) and session gateways
// (subscribers).
func GroupName(id int64) string {
	return fmt.Sprintf("tune_%d", id)
}
