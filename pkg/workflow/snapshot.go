package workflow

import (
	"maps"
	"slices"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/qa"
	"riskadvisor/pkg/riskapi"
	"riskadvisor/pkg/session"
)

// Failure describes why the last step failed.
type Failure struct {
	Kind       apierrors.Kind
	Step       State // Step that failed: Starting, AwaitingQuestions or Submitting
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

// Snapshot is a read-only copy of the orchestrator state for rendering.
type Snapshot struct {
	State       State
	RunID       string
	Session     *session.Session
	Draft       ProjectBrief
	FieldErrors map[string]string
	Questions   []qa.Question
	Answers     qa.Answers
	Unanswered  []string
	Report      *riskapi.AnalysisReport
	// Failure is set in Failed and in Answering after a failed submission.
	Failure   *Failure
	CanSubmit bool // Forward action enabled
	InFlight  bool
}

// ErrorMessage returns the user-facing failure message, if any.
func (s Snapshot) ErrorMessage() string {
	if s.Failure == nil {
		return ""
	}
	return s.Failure.Message
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       o.state,
		RunID:       o.runID,
		Draft:       o.draft,
		FieldErrors: maps.Clone(o.fieldErrors),
		Questions:   slices.Clone(o.questions),
		Answers:     o.answers.Clone(),
		InFlight:    o.inflight != nil,
	}
	if snap.FieldErrors == nil {
		snap.FieldErrors = map[string]string{}
	}
	if o.sess != nil {
		sess := *o.sess
		snap.Session = &sess
	}
	if o.report != nil {
		report := *o.report
		snap.Report = &report
	}
	if o.failure != nil {
		failure := *o.failure
		snap.Failure = &failure
	}
	if o.state == StateAnswering || o.state == StateSubmitting {
		snap.Unanswered = qa.Unanswered(o.questions, o.answers)
	}
	snap.CanSubmit = o.canSubmitLocked()
	return snap
}

func (o *Orchestrator) canSubmitLocked() bool {
	if o.inflight != nil || o.closed {
		return false
	}
	switch o.state {
	case StateCollecting:
		return ValidateBrief(o.draft) == nil
	case StateFailed:
		return o.failure != nil && o.failure.Step == StateStarting && ValidateBrief(o.draft) == nil
	case StateAnswering:
		return qa.AllAnswered(o.questions, o.answers)
	default:
		return false
	}
}
