package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/qa"
	"riskadvisor/pkg/session"
	"riskadvisor/pkg/workflow"
)

const maxShownProblems = 3

// errQuit ends the run without an error: the user quit or input ran out.
var errQuit = errors.New("quit")

// runner is the terminal front end of one orchestrator. It renders snapshots and turns
// lines of input into workflow operations.
type runner struct {
	orch        *workflow.Orchestrator
	lines       <-chan string
	out         io.Writer
	budget      workflow.BudgetFormat
	interactive bool
	logger      *logx.Logger
	started     time.Time
}

func newRunner(orch *workflow.Orchestrator, in io.Reader, out io.Writer, interactive bool) *runner {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &runner{
		orch:        orch,
		lines:       lines,
		out:         out,
		budget:      workflow.DefaultBudgetFormat(),
		interactive: interactive,
		logger:      logx.NewLogger("cli"),
		started:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

// run drives the workflow until a report is shown, the user quits or ctx is done.
func (r *runner) run(ctx context.Context, resume bool) error {
	if resume {
		err := r.orch.Resume(ctx)
		switch {
		case errors.Is(err, session.ErrNoSession):
			fmt.Fprintln(r.out, "No saved session, starting a new analysis.")
		case errors.Is(err, workflow.ErrSessionMissing):
			r.logger.Warn("stored session has no id, ignoring it: %v", err)
			fmt.Fprintln(r.out, "⚠️  The saved session is incomplete and cannot be resumed, starting a new analysis.")
		case err != nil:
			return fmt.Errorf("resume failed: %w", err)
		default:
			fmt.Fprintf(r.out, "Resuming \"%s\".\n", r.orch.Snapshot().Draft.Title)
		}
	}

	for {
		if snap := r.orch.Snapshot(); snap.InFlight {
			fmt.Fprintln(r.out, progressLine(snap.State))
		}
		snap, err := r.orch.WaitIdle(ctx)
		if err != nil {
			return r.interrupted(err)
		}

		done, err := r.step(ctx, snap)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			return r.interrupted(err)
		case done:
			return nil
		}
	}
}

func (r *runner) interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.out, "\nInterrupted. Run with -resume to continue the saved session.")
		return nil
	}
	return err
}

// step handles one idle snapshot. done reports that the run is complete.
func (r *runner) step(ctx context.Context, snap workflow.Snapshot) (bool, error) {
	logx.DebugFlow(ctx, "cli", "step", string(snap.State))
	switch snap.State {
	case workflow.StateCollecting:
		return false, r.collectBrief(ctx, snap)
	case workflow.StateAwaitingQuestions:
		if r.interactive {
			if _, err := r.readLine(ctx, "Press Enter to load the questions: "); err != nil {
				return false, err
			}
		}
		return false, r.userError(r.orch.RequestQuestions(ctx))
	case workflow.StateAnswering:
		return false, r.answer(ctx, snap)
	case workflow.StateReportReady:
		renderReport(r.out, snap.Report, snap.Draft.Title)
		if !r.interactive {
			return true, nil
		}
		choice, err := r.readLine(ctx, "\nStart another analysis? [y/N]: ")
		if err != nil || !strings.EqualFold(choice, "y") {
			return true, ignoreQuit(err)
		}
		return false, r.orch.StartNewWorkflow()
	case workflow.StateFailed:
		return false, r.handleFailure(ctx, snap)
	default:
		return false, fmt.Errorf("unexpected idle state %s", snap.State)
	}
}

// collectBrief prompts for the brief. Blank input keeps the current draft value.
func (r *runner) collectBrief(ctx context.Context, snap workflow.Snapshot) error {
	fmt.Fprintln(r.out, "\n📝 Project brief")
	for _, field := range []string{workflow.FieldTitle, workflow.FieldDescription, workflow.FieldBudget} {
		if msg, ok := snap.FieldErrors[field]; ok {
			fmt.Fprintf(r.out, "⚠️  %s: %s\n", field, msg)
		}
	}

	draft := snap.Draft
	title, err := r.prompt(ctx, "Project title", draft.Title)
	if err != nil {
		return err
	}
	draft.Title = title
	r.orch.UpdateDraft(draft)

	description, err := r.prompt(ctx, "Description", draft.Description)
	if err != nil {
		return err
	}
	draft.Description = description
	r.orch.UpdateDraft(draft)

	current := draft.Budget
	if draft.BudgetUndecided {
		current = r.budget.UndecidedLabel
	}
	budget, err := r.prompt(ctx, fmt.Sprintf("Budget in %s ('?' or %s if undecided)", r.budget.UnitSuffix, r.budget.UndecidedLabel), current)
	if err != nil {
		return err
	}
	if budget == "?" || budget == r.budget.UndecidedLabel {
		draft.Budget, draft.BudgetUndecided = "", true
	} else {
		draft.Budget, draft.BudgetUndecided = budget, false
	}

	return r.userError(r.orch.SubmitBrief(ctx, draft))
}

// answer asks every unanswered question, then confirms the submission.
func (r *runner) answer(ctx context.Context, snap workflow.Snapshot) error {
	if snap.Failure != nil {
		return r.handleSubmitFailure(ctx, snap)
	}

	if len(snap.Questions) > 0 && len(snap.Unanswered) == len(snap.Questions) {
		fmt.Fprintf(r.out, "\n❓ %d questions to answer\n", len(snap.Questions))
	}
	for _, id := range snap.Unanswered {
		if err := r.askQuestion(ctx, snap.Questions, id); err != nil {
			return err
		}
	}

	snap = r.orch.Snapshot()
	if !snap.CanSubmit {
		return nil
	}
	renderAnswers(r.out, snap.Questions, snap.Answers)
	if r.interactive {
		choice, err := r.readLine(ctx, "Submit these answers? [Y/n]: ")
		if err != nil {
			return err
		}
		if strings.EqualFold(choice, "n") {
			return r.editAnswers(ctx, snap.Questions)
		}
	}
	return r.userError(r.orch.ConfirmSubmission(ctx))
}

func (r *runner) askQuestion(ctx context.Context, questions []qa.Question, id string) error {
	idx := -1
	for i := range questions {
		if questions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", workflow.ErrUnknownQuestion, id)
	}
	q := questions[idx]

	fmt.Fprintf(r.out, "\nQ%d/%d [%s] %s\n", idx+1, len(questions), q.Method, q.Text)
	for i, choice := range q.Choices {
		fmt.Fprintf(r.out, "  %d) %s\n", i+1, choice)
	}
	text, err := r.readLine(ctx, "> ")
	if err != nil {
		return err
	}
	if n, convErr := strconv.Atoi(text); convErr == nil && n >= 1 && n <= len(q.Choices) {
		text = q.Choices[n-1]
	}
	return r.orch.SubmitAnswer(q.ID, text) //nolint:wrapcheck // workflow errors are already descriptive
}

// editAnswers re-asks the questions the user picks by number until a blank line.
func (r *runner) editAnswers(ctx context.Context, questions []qa.Question) error {
	for {
		choice, err := r.readLine(ctx, "Question number to change (Enter when done): ")
		if err != nil || choice == "" {
			return err
		}
		n, convErr := strconv.Atoi(choice)
		if convErr != nil || n < 1 || n > len(questions) {
			fmt.Fprintf(r.out, "Enter a number between 1 and %d.\n", len(questions))
			continue
		}
		if err := r.askQuestion(ctx, questions, questions[n-1].ID); err != nil {
			return err
		}
	}
}

// handleSubmitFailure offers recovery after a failed submission. Answers are kept.
func (r *runner) handleSubmitFailure(ctx context.Context, snap workflow.Snapshot) error {
	fmt.Fprintf(r.out, "❌ Submitting answers failed: %s\n", snap.ErrorMessage())
	r.showRecentProblems()
	if !r.interactive {
		return failureError(snap.Failure)
	}
	choice, err := r.readLine(ctx, "[r]etry, [e]dit answers, [n]ew analysis, [q]uit: ")
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "r", "":
		return r.userError(r.orch.Retry(ctx))
	case "e":
		if err := r.editAnswers(ctx, snap.Questions); err != nil {
			return err
		}
		return r.userError(r.orch.ConfirmSubmission(ctx))
	case "n":
		return r.orch.StartNewWorkflow() //nolint:wrapcheck // workflow errors are already descriptive
	case "q":
		return errQuit
	default:
		return nil
	}
}

// handleFailure offers recovery from the Failed state.
func (r *runner) handleFailure(ctx context.Context, snap workflow.Snapshot) error {
	step := "Request"
	if snap.Failure != nil {
		step = stepLabel(snap.Failure.Step)
	}
	fmt.Fprintf(r.out, "❌ %s failed: %s\n", step, snap.ErrorMessage())
	r.showRecentProblems()
	if !r.interactive {
		return failureError(snap.Failure)
	}

	canEdit := snap.Failure != nil && snap.Failure.Step == workflow.StateStarting
	options := "[r]etry, [n]ew analysis, [q]uit: "
	if canEdit {
		options = "[r]etry, [e]dit brief, [n]ew analysis, [q]uit: "
	}
	choice, err := r.readLine(ctx, options)
	if err != nil {
		return err
	}
	switch strings.ToLower(choice) {
	case "r", "":
		return r.userError(r.orch.Retry(ctx))
	case "e":
		if !canEdit {
			return nil
		}
		return r.collectBrief(ctx, snap)
	case "n":
		return r.orch.StartNewWorkflow() //nolint:wrapcheck // workflow errors are already descriptive
	case "q":
		return errQuit
	default:
		return nil
	}
}

// showRecentProblems prints the latest warnings and errors logged during this run, which
// otherwise only reach the log file.
func (r *runner) showRecentProblems() {
	var problems []logx.LogEntry
	for _, entry := range logx.GetRecentLogEntries("", r.started) {
		if entry.Level == string(logx.LevelWarn) || entry.Level == string(logx.LevelError) {
			problems = append(problems, entry)
		}
	}
	if len(problems) == 0 {
		return
	}
	if len(problems) > maxShownProblems {
		problems = problems[len(problems)-maxShownProblems:]
	}
	fmt.Fprintln(r.out, "   Recent log:")
	for i := range problems {
		fmt.Fprintf(r.out, "   %s [%s] %s\n", problems[i].Level, problems[i].Component, problems[i].Message)
	}
}

// userError prints validation errors and swallows them; everything else is returned.
func (r *runner) userError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := apierrors.As(err); ok && apiErr.Kind == apierrors.KindValidation {
		fmt.Fprintf(r.out, "⚠️  %s\n", apiErr.UserMessage())
		return nil
	}
	return err
}

func (r *runner) prompt(ctx context.Context, label, current string) (string, error) {
	p := label + ": "
	if current != "" {
		p = fmt.Sprintf("%s [%s]: ", label, current)
	}
	line, err := r.readLine(ctx, p)
	if err != nil {
		return "", err
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

// readLine prints p and waits for one trimmed line. End of input yields errQuit.
func (r *runner) readLine(ctx context.Context, p string) (string, error) {
	fmt.Fprint(r.out, p)
	select {
	case <-ctx.Done():
		return "", ctx.Err() //nolint:wrapcheck // context errors pass through
	case line, ok := <-r.lines:
		if !ok {
			return "", errQuit
		}
		if !r.interactive {
			fmt.Fprintln(r.out)
		}
		return strings.TrimSpace(line), nil
	}
}

func ignoreQuit(err error) error {
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func failureError(f *workflow.Failure) error {
	if f == nil {
		return errors.New("workflow failed")
	}
	if f.Err != nil {
		return fmt.Errorf("%s: %w", stepLabel(f.Step), f.Err)
	}
	return fmt.Errorf("%s: %s", stepLabel(f.Step), f.Message)
}

func stepLabel(step workflow.State) string {
	switch step {
	case workflow.StateStarting:
		return "Starting the analysis"
	case workflow.StateAwaitingQuestions:
		return "Loading questions"
	case workflow.StateSubmitting:
		return "Submitting answers"
	default:
		return string(step)
	}
}

func progressLine(state workflow.State) string {
	switch state {
	case workflow.StateStarting:
		return "⏳ Starting the analysis..."
	case workflow.StateAwaitingQuestions:
		return "⏳ Generating questions..."
	case workflow.StateSubmitting:
		return "⏳ Building the report..."
	default:
		return "⏳ Working..."
	}
}
