// Package metrics records analysis service calls and workflow transitions.
package metrics

import (
	"time"
)

// Outcome labels for a request that did not fail.
const (
	OutcomeSuccess  = "success"
	OutcomeCanceled = "canceled"
)

// Recorder defines the interface for recording workflow metrics.
type Recorder interface {
	// ObserveRequest records one remote call. Outcome is OutcomeSuccess, OutcomeCanceled
	// or the error kind ("network", "server", "parse").
	ObserveRequest(operation, outcome string, duration time.Duration)

	// ObserveTransition records one state machine transition.
	ObserveTransition(from, to string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(_, _ string, _ time.Duration) {}

// ObserveTransition does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveTransition(_, _ string) {}
