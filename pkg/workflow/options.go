package workflow

import (
	"riskadvisor/pkg/eventlog"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/metrics"
)

// Journal receives every transition. *eventlog.Writer implements it.
type Journal interface {
	Write(ev eventlog.Event) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAutoFetchQuestions controls whether questions are requested as soon as a session starts.
// When disabled the workflow parks in AwaitingQuestions until RequestQuestions.
func WithAutoFetchQuestions(enabled bool) Option {
	return func(o *Orchestrator) { o.autoFetch = enabled }
}

// WithRecorder records transitions.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithJournal appends transitions to j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithLogger replaces the default "workflow" logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBudgetFormat sets the budget wire format.
func WithBudgetFormat(f BudgetFormat) Option {
	return func(o *Orchestrator) { o.budget = f }
}
