package workflow

import (
	"errors"
	"slices"
	"time"
)

// State is a workflow state.
type State string

// Workflow states.
const (
	StateCollecting        State = "collecting"
	StateStarting          State = "starting"
	StateAwaitingQuestions State = "awaiting_questions"
	StateAnswering         State = "answering"
	StateSubmitting        State = "submitting"
	StateReportReady       State = "report_ready"
	StateFailed            State = "failed"
)

func (s State) String() string { return string(s) }

// Errors returned by orchestrator operations.
var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrBusy is returned when a request for the current step is still in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrSessionMissing means a step that needs the session id was entered without one.
	ErrSessionMissing = errors.New("session id missing")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrUnknownQuestion is returned when answering a question that is not in the current set.
	ErrUnknownQuestion = errors.New("unknown question id")
)

// TransitionTable lists the allowed target states per state.
type TransitionTable map[State][]State

// ValidTransitions is the workflow transition table. Every non-terminal state can also be
// abandoned back to Collecting.
var ValidTransitions = TransitionTable{
	StateCollecting:        {StateStarting, StateAwaitingQuestions},
	StateStarting:          {StateAwaitingQuestions, StateFailed, StateCollecting},
	StateAwaitingQuestions: {StateAnswering, StateFailed, StateCollecting},
	StateAnswering:         {StateSubmitting, StateCollecting},
	StateSubmitting:        {StateReportReady, StateAnswering, StateCollecting},
	StateReportReady:       {StateCollecting},
	StateFailed:            {StateStarting, StateAwaitingQuestions, StateCollecting},
}

// IsValid reports whether from -> to is allowed.
func (t TransitionTable) IsValid(from, to State) bool {
	return slices.Contains(t[from], to)
}

// StateTransition records one transition.
type StateTransition struct {
	FromState State
	ToState   State
	Trigger   string
	Timestamp time.Time
}
