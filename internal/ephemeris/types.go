// Package ephemeris fetches, parses and caches heliocentric state vectors for
// the major planets.
package ephemeris

import (
	"context"

	"github.com/latency-space/porkchop/internal/bodies"
	"github.com/latency-space/porkchop/internal/vector"
)

// StateVector is one sampled instant of a body's heliocentric, ecliptic-frame
// state.
type StateVector struct {
	Epoch        float64     `json:"epoch"` // Julian date (TDB)
	CalendarDate string      `json:"calendarDate"`
	Position     vector.Vec3 `json:"position"` // km
	Velocity     vector.Vec3 `json:"velocity"` // km/s
}

// Series is an ascending-epoch sequence of state vectors for one body over
// one date window. Series returned by the provider are shared with the cache
// and must not be modified.
type Series []StateVector

// Request identifies one ephemeris window.
type Request struct {
	Body    *bodies.Body
	Start   string
	End     string
	Samples int // number of intervals; the series holds Samples+1 points
}

// Key identifies a cache entry.
type Key struct {
	BodyID  string
	Start   string
	End     string
	Samples int
}

func (r Request) key() Key {
	return Key{BodyID: r.Body.HorizonsID, Start: r.Start, End: r.End, Samples: r.Samples}
}

// Source produces ephemeris series for a request.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) Result
}

// Outcome tags a Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNetwork
	OutcomeFormat
	OutcomeEmpty
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNetwork:
		return "network"
	case OutcomeFormat:
		return "format"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is the outcome of one source fetch. Series is only set on success;
// Detail and Status describe failures.
type Result struct {
	Outcome Outcome
	Series  Series
	Detail  string
	Status  int   // upstream HTTP status for network failures, 0 if no response
	Cause   error // transport error, if any
}

// Success wraps a series.
func Success(s Series) Result {
	return Result{Outcome: OutcomeSuccess, Series: s}
}

// Failure builds a failed result.
func Failure(outcome Outcome, detail string) Result {
	return Result{Outcome: outcome, Detail: detail}
}

// Err converts a failed result to its typed error. It returns nil on success.
func (r Result) Err(bodyID string) error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeNetwork:
		return &NetworkError{BodyID: bodyID, Status: r.Status, Excerpt: r.Detail, Err: r.Cause}
	case OutcomeEmpty:
		return &EmptyResultError{BodyID: bodyID}
	default:
		return &FormatError{BodyID: bodyID, Detail: r.Detail}
	}
}
