// Package workflow drives one risk analysis run: collect the project brief, start a
// session, fetch clarifying questions, collect answers and submit them for a report.
//
// The Orchestrator is a state machine. Operations validate their input and return at once;
// the remote call runs on its own goroutine and its completion transitions the machine and
// publishes a Snapshot to subscribers. At most one request is in flight; a completion that
// arrives after the workflow was abandoned or closed is discarded.
//
//	orch, _ := workflow.New(client, store)
//	updates, cancel := orch.Subscribe()
//	defer cancel()
//	_ = orch.SubmitBrief(ctx, workflow.ProjectBrief{Title: "App", Description: "desc", Budget: "500"})
//	for snap := range updates { render(snap) }
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/eventlog"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/metrics"
	"riskadvisor/pkg/qa"
	"riskadvisor/pkg/riskapi"
	"riskadvisor/pkg/session"
)

// Triggers recorded with each transition.
const (
	triggerSubmitBrief = "submit_brief"
	triggerResume      = "resume"
	triggerFetch       = "fetch_questions"
	triggerConfirm     = "confirm_submission"
	triggerRetry       = "retry"
	triggerCompleted   = "completed"
	triggerFailed      = "failed"
	triggerNewWorkflow = "new_workflow"
)

const storeTimeout = 5 * time.Second

// Orchestrator owns the session, question set and answers of one workflow instance.
type Orchestrator struct {
	client   riskapi.Client
	store    session.Store
	archiver session.Archiver
	logger   *logx.Logger
	recorder metrics.Recorder
	journal  Journal
	budget   BudgetFormat
	table    TransitionTable

	autoFetch bool

	mu          sync.Mutex
	state       State
	runID       string
	draft       ProjectBrief
	fieldErrors map[string]string
	sess        *session.Session
	questions   []qa.Question
	answers     qa.Answers
	report      *riskapi.AnalysisReport
	failure     *Failure
	transitions []StateTransition

	// In-flight request bookkeeping. epoch changes whenever a pending completion must be ignored.
	epoch    uint64
	cancel   context.CancelFunc
	inflight chan struct{}
	closed   bool

	subs    map[int]chan Snapshot
	nextSub int
}

// New creates an orchestrator in Collecting. A nil store keeps the session in memory.
func New(client riskapi.Client, store session.Store, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("workflow: client is required")
	}
	if store == nil {
		store = session.NewMemoryStore()
	}

	o := &Orchestrator{
		client:      client,
		store:       store,
		logger:      logx.NewLogger("workflow"),
		recorder:    metrics.Nop(),
		budget:      DefaultBudgetFormat(),
		table:       ValidTransitions,
		autoFetch:   true,
		state:       StateCollecting,
		runID:       uuid.NewString(),
		fieldErrors: map[string]string{},
		answers:     qa.Answers{},
		subs:        map[int]chan Snapshot{},
	}
	if archiver, ok := store.(session.Archiver); ok {
		o.archiver = archiver
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// History returns the transitions of the current workflow instance.
func (o *Orchestrator) History() []StateTransition {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]StateTransition, len(o.transitions))
	copy(out, o.transitions)
	return out
}

// Subscribe returns a channel that receives the current snapshot and then one after every
// change. Delivery is latest-wins: a slow reader skips intermediate snapshots. The channel
// is closed by the returned cancel func or by Close.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if o.closed {
		ch <- o.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

// publishLocked replaces any undelivered snapshot with the current one.
func (o *Orchestrator) publishLocked() {
	if len(o.subs) == 0 {
		return
	}
	snap := o.snapshotLocked()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// WaitIdle blocks until no request is in flight and returns the resulting snapshot.
func (o *Orchestrator) WaitIdle(ctx context.Context) (Snapshot, error) {
	for {
		o.mu.Lock()
		done := o.inflight
		if done == nil {
			snap := o.snapshotLocked()
			o.mu.Unlock()
			return snap, nil
		}
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return o.Snapshot(), fmt.Errorf("waiting for workflow: %w", ctx.Err())
		case <-done:
		}
	}
}

// UpdateDraft records an in-progress brief edit. Errors of the edited fields are cleared;
// nothing is re-validated until the next SubmitBrief.
func (o *Orchestrator) UpdateDraft(brief ProjectBrief) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.editableLocked() {
		o.logger.Debug("ignoring draft edit in state %s", o.state)
		return
	}
	next := mergeDraft(o.draft, brief)
	for _, field := range changedFields(o.draft, next) {
		delete(o.fieldErrors, field)
	}
	o.draft = next
	o.publishLocked()
}

// editableLocked reports whether the brief form accepts input.
func (o *Orchestrator) editableLocked() bool {
	if o.closed || o.inflight != nil {
		return false
	}
	return o.state == StateCollecting || (o.state == StateFailed && o.failure != nil && o.failure.Step == StateStarting)
}

// SubmitBrief validates the brief and starts the analysis. A validation failure is returned
// as an *apierrors.Error naming the first unmet field and leaves the state unchanged.
// ctx bounds the requests this call starts, including the automatic questions request.
func (o *Orchestrator) SubmitBrief(ctx context.Context, brief ProjectBrief) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}
	if !o.editableLocked() {
		return fmt.Errorf("%w: cannot submit a brief in state %s", ErrInvalidTransition, o.state)
	}

	o.draft = brief
	if err := ValidateBrief(brief); err != nil {
		apiErr, _ := apierrors.As(err)
		o.fieldErrors = map[string]string{apiErr.Field: apiErr.UserMessage()}
		o.publishLocked()
		return err
	}
	o.fieldErrors = map[string]string{}
	return o.startLocked(ctx, NormalizeBrief(brief), triggerSubmitBrief)
}

// RequestQuestions issues the questions request when the workflow is parked in
// AwaitingQuestions.
func (o *Orchestrator) RequestQuestions(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}
	if o.state != StateAwaitingQuestions {
		return fmt.Errorf("%w: cannot request questions in state %s", ErrInvalidTransition, o.state)
	}
	return o.fetchLocked(ctx)
}

// SubmitAnswer records the answer to one question. Blank text removes the answer.
func (o *Orchestrator) SubmitAnswer(questionID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}
	if o.state != StateAnswering {
		return fmt.Errorf("%w: cannot answer in state %s", ErrInvalidTransition, o.state)
	}
	if !qa.Contains(o.questions, questionID) {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	o.answers.Set(questionID, text)
	delete(o.fieldErrors, FieldAnswers)
	o.publishLocked()
	return nil
}

// ConfirmSubmission submits the answers in question order. It is rejected with a validation
// error listing the unanswered questions until every question has an answer.
func (o *Orchestrator) ConfirmSubmission(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}
	if o.state != StateAnswering {
		return fmt.Errorf("%w: cannot submit answers in state %s", ErrInvalidTransition, o.state)
	}
	return o.submitLocked(ctx, triggerConfirm)
}

// Retry re-enters the step that failed. It never happens automatically.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}

	switch {
	case o.state == StateFailed && o.failure != nil && o.failure.Step == StateStarting:
		if err := ValidateBrief(o.draft); err != nil {
			return err
		}
		return o.startLocked(ctx, NormalizeBrief(o.draft), triggerRetry)
	case o.state == StateFailed && o.failure != nil && o.failure.Step == StateAwaitingQuestions:
		if !o.sess.Valid() {
			return ErrSessionMissing
		}
		o.transitionLocked(StateAwaitingQuestions, triggerRetry)
		return o.fetchLocked(ctx)
	case o.state == StateAnswering && o.failure != nil:
		return o.submitLocked(ctx, triggerRetry)
	default:
		return fmt.Errorf("%w: nothing to retry in state %s", ErrInvalidTransition, o.state)
	}
}

// Resume continues the session held by the store, as left by an interrupted run.
// It returns session.ErrNoSession when nothing is stored.
func (o *Orchestrator) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.guardLocked(); err != nil {
		return err
	}
	if o.state != StateCollecting {
		return fmt.Errorf("%w: cannot resume in state %s", ErrInvalidTransition, o.state)
	}

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	stored, err := o.store.Load(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !stored.Valid() {
		return ErrSessionMissing
	}

	o.sess = &stored
	o.draft = stored.Brief
	o.logger.Info("resuming session %s", stored.ID)
	o.transitionLocked(StateAwaitingQuestions, triggerResume)
	if o.autoFetch {
		return o.fetchLocked(ctx)
	}
	o.publishLocked()
	return nil
}

// StartNewWorkflow abandons the current run, including any request in flight, discards
// the session and returns to an empty Collecting state with a new run id.
func (o *Orchestrator) StartNewWorkflow() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	o.abortLocked()

	if o.state != StateCollecting {
		o.transitionLocked(StateCollecting, triggerNewWorkflow)
	}
	o.clearStoreLocked()

	o.runID = uuid.NewString()
	o.draft = ProjectBrief{}
	o.fieldErrors = map[string]string{}
	o.sess = nil
	o.questions = nil
	o.answers = qa.Answers{}
	o.report = nil
	o.failure = nil
	o.transitions = nil
	o.publishLocked()
	return nil
}

// Close cancels any request in flight and closes every subscription. Late responses are
// discarded. Later operations return ErrClosed.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.abortLocked()
	o.closed = true
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
	return nil
}

func (o *Orchestrator) guardLocked() error {
	if o.closed {
		return ErrClosed
	}
	if o.inflight != nil {
		return ErrBusy
	}
	return nil
}

// startLocked issues the start-analysis request for a validated, normalized brief.
func (o *Orchestrator) startLocked(ctx context.Context, brief ProjectBrief, trigger string) error {
	req := riskapi.StartRequest{
		BusinessName:        brief.Title,
		BusinessDescription: brief.Description,
		ProjectBudget:       o.budget.Format(brief),
	}
	o.sess = nil
	o.failure = nil
	o.transitionLocked(StateStarting, trigger)

	o.launchLocked(ctx, func(opCtx context.Context) func() {
		res, err := o.client.StartAnalysis(opCtx, req)
		return func() {
			if err != nil {
				o.failLocked(StateStarting, err)
				return
			}
			if res.SessionID == "" {
				o.logger.Error("start analysis returned no session id")
				o.failLocked(StateStarting, apierrors.NewParse(riskapi.OpStartAnalysis, apierrors.StageInitial, ErrSessionMissing))
				return
			}
			o.sess = &session.Session{ID: res.SessionID, Brief: brief}
			o.saveStoreLocked()
			o.transitionLocked(StateAwaitingQuestions, triggerCompleted)
			if o.autoFetch {
				if err := o.fetchLocked(ctx); err != nil {
					o.logger.Error("failed to request questions: %v", err)
				}
			}
		}
	})
	o.publishLocked()
	return nil
}

// fetchLocked issues the questions request. The state must be AwaitingQuestions.
func (o *Orchestrator) fetchLocked(ctx context.Context) error {
	if !o.sess.Valid() {
		return ErrSessionMissing
	}
	sessionID := o.sess.ID
	o.failure = nil

	o.launchLocked(ctx, func(opCtx context.Context) func() {
		set, err := o.client.FetchQuestions(opCtx, sessionID)
		return func() {
			if err != nil {
				o.failLocked(StateAwaitingQuestions, err)
				return
			}
			if set.SessionID != "" && set.SessionID != o.sess.ID {
				o.logger.Info("session refreshed: %s -> %s", o.sess.ID, set.SessionID)
				o.sess.ID = set.SessionID
				o.saveStoreLocked()
			}
			o.questions = set.Questions
			o.answers = qa.Answers{}
			o.transitionLocked(StateAnswering, triggerCompleted)
		}
	})
	o.publishLocked()
	return nil
}

// submitLocked issues the report request once every question is answered.
func (o *Orchestrator) submitLocked(ctx context.Context, trigger string) error {
	if !o.sess.Valid() {
		return ErrSessionMissing
	}
	if missing := qa.Unanswered(o.questions, o.answers); len(missing) > 0 {
		err := apierrors.NewUnanswered(missing)
		o.fieldErrors[FieldAnswers] = err.Error()
		o.publishLocked()
		return err
	}

	sessionID := o.sess.ID
	payload := qa.ToSubmissionPayload(o.questions, o.answers)
	o.failure = nil
	o.transitionLocked(StateSubmitting, trigger)

	o.launchLocked(ctx, func(opCtx context.Context) func() {
		report, err := o.client.SubmitAnswers(opCtx, sessionID, payload)
		return func() {
			if err != nil {
				// Answers stay intact so the user can retry.
				o.failure = newFailure(StateSubmitting, err)
				o.logger.Warn("submission failed: %v", err)
				o.transitionLocked(StateAnswering, triggerFailed)
				return
			}
			o.report = &report
			o.transitionLocked(StateReportReady, triggerCompleted)
			o.archiveLocked(report)
			o.clearStoreLocked()
		}
	})
	o.publishLocked()
	return nil
}

// launchLocked marks a request in flight and runs call on its own goroutine. call performs
// the request and returns the completion, which runs under the lock unless the request
// was abandoned in the meantime.
func (o *Orchestrator) launchLocked(ctx context.Context, call func(opCtx context.Context) func()) {
	o.epoch++
	epoch := o.epoch
	opCtx, cancel := context.WithCancel(logx.WithRunID(ctx, o.runID))
	done := make(chan struct{})
	o.cancel = cancel
	o.inflight = done
	o.logger.DebugState("request launched", string(o.state), fmt.Sprintf("epoch %d", epoch))

	go func() {
		complete := call(opCtx)

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.closed || o.epoch != epoch {
			logx.Debug(opCtx, "workflow", "discarding stale completion (epoch %d)", epoch)
			return
		}
		o.finishRequestLocked()
		complete()
		o.publishLocked()
	}()
}

// finishRequestLocked clears the in-flight marker and wakes WaitIdle callers.
func (o *Orchestrator) finishRequestLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.inflight != nil {
		close(o.inflight)
		o.inflight = nil
	}
}

// abortLocked abandons the request in flight, if any.
func (o *Orchestrator) abortLocked() {
	if o.inflight == nil {
		return
	}
	o.epoch++
	o.finishRequestLocked()
}

func (o *Orchestrator) failLocked(step State, err error) {
	o.failure = newFailure(step, err)
	o.logger.Warn("%s failed: %v", step, err)
	o.transitionLocked(StateFailed, triggerFailed)
}

func newFailure(step State, err error) *Failure {
	apiErr, ok := apierrors.As(err)
	if !ok {
		// Anything unclassified, including context errors from non-HTTP clients, is
		// treated as a transport failure.
		apiErr = apierrors.NewNetwork(string(step), err)
	}
	return &Failure{
		Kind:       apiErr.Kind,
		Step:       step,
		Message:    apiErr.UserMessage(),
		StatusCode: apiErr.StatusCode,
		Retryable:  apiErr.IsRetryable(),
		Err:        err,
	}
}

// transitionLocked moves to newState. Transitions are driven only by the orchestrator's own
// operations, so an invalid one is a bug and panics.
func (o *Orchestrator) transitionLocked(newState State, trigger string) {
	oldState := o.state
	if !o.table.IsValid(oldState, newState) {
		panic(fmt.Sprintf("workflow: %v: %s -> %s", ErrInvalidTransition, oldState, newState))
	}

	transition := StateTransition{
		FromState: oldState,
		ToState:   newState,
		Trigger:   trigger,
		Timestamp: time.Now().UTC(),
	}
	o.transitions = append(o.transitions, transition)
	o.state = newState

	o.logger.Info("🔄 %s → %s (%s)", oldState, newState, trigger)
	o.recorder.ObserveTransition(string(oldState), string(newState))

	if o.journal != nil {
		ev := eventlog.Event{
			Timestamp: transition.Timestamp,
			RunID:     o.runID,
			From:      string(oldState),
			To:        string(newState),
			Trigger:   trigger,
		}
		if o.sess != nil {
			ev.SessionID = o.sess.ID
		}
		if o.failure != nil && (newState == StateFailed || trigger == triggerFailed) {
			ev.FailureKind = o.failure.Kind.String()
			ev.Message = o.failure.Message
		}
		if err := o.journal.Write(ev); err != nil {
			o.logger.Warn("failed to journal transition: %v", err)
		}
	}
}

// Store failures are logged and never fail the workflow.
func (o *Orchestrator) saveStoreLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.store.Save(ctx, *o.sess); err != nil {
		o.logger.Warn("failed to persist session %s: %v", o.sess.ID, err)
	}
}

func (o *Orchestrator) clearStoreLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.store.Clear(ctx); err != nil {
		o.logger.Warn("failed to clear stored session: %v", err)
	}
}

func (o *Orchestrator) archiveLocked(report riskapi.AnalysisReport) {
	if o.archiver == nil || o.sess == nil {
		return
	}
	raw := report.Raw
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(report); err != nil {
			o.logger.Warn("failed to encode report for archive: %v", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := o.archiver.Archive(ctx, session.ArchivedReport{
		ID:        uuid.NewString(),
		RunID:     o.runID,
		SessionID: o.sess.ID,
		Brief:     o.sess.Brief,
		Report:    raw,
	})
	if err != nil {
		o.logger.Warn("failed to archive report: %v", err)
	}
}
