// Package notify delivers push notifications keyed off aggregate state:
// single-target and multicast sends, the daily reminder and weekly ranking
// sweeps, and the level-up callable path. Per-target failures are isolated
// and counted, never propagated; tokens the transport reports as dead are
// cleared from their owner's document best-effort.
package notify

import "time"

const (
	// Multicast sends are chunked to the transport's per-call token limit.
	maxMulticastTokens = 500

	// Bound on concurrent single-target sends within one sweep.
	sweepConcurrency = 8

	// Users whose last measurement is older than this get a reminder.
	reminderAfter = 72 * time.Hour
)

// Notification copy. The data bag of every payload is string-typed — the
// transport requires homogeneous string values.
const (
	appTitle      = "CafeOndo ☕"
	levelUpTitle  = "CafeOndo 🎉"
	reminderBody  = "Measure the noise at a cafe today! ☕"
	weeklyBody    = "This week's quietest cafes TOP 20 has been updated!"
	defaultNowKey = "sentAt"
)

// Result aggregates a multi-target send.
type Result struct {
	SuccessCount int
	FailureCount int
}

// ErrorKind classifies transport delivery failures.
type ErrorKind string

const (
	// KindUnregistered and KindInvalidToken mark dead endpoints whose
	// stored token should be cleared.
	KindUnregistered ErrorKind = "endpoint-unregistered"
	KindInvalidToken ErrorKind = "endpoint-invalid"
	// KindOther covers every other delivery failure: logged, counted,
	// no cleanup.
	KindOther ErrorKind = "other"
)

// TransportError is a classified delivery failure for one target.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// deadEndpoint reports whether err marks a token that should be cleared.
func deadEndpoint(err error) bool {
	te, ok := err.(*TransportError)
	return ok && (te.Kind == KindUnregistered || te.Kind == KindInvalidToken)
}
