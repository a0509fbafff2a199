package riskapi

import (
	"context"
	"errors"
	"time"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/metrics"
	"riskadvisor/pkg/qa"
)

// outcomeOf maps a call result to a metrics outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) {
		return metrics.OutcomeCanceled
	}
	if kind, ok := apierrors.KindOf(err); ok {
		return kind.String()
	}
	return "unknown"
}

// MetricsMiddleware records the outcome and latency of every call.
func MetricsMiddleware(recorder metrics.Recorder) Middleware {
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req StartRequest) (StartResult, error) {
				start := time.Now()
				res, err := next.StartAnalysis(ctx, req)
				recorder.ObserveRequest(OpStartAnalysis, outcomeOf(err), time.Since(start))
				return res, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			func(ctx context.Context, sessionID string) (QuestionSet, error) {
				start := time.Now()
				set, err := next.FetchQuestions(ctx, sessionID)
				recorder.ObserveRequest(OpFetchQuestions, outcomeOf(err), time.Since(start))
				return set, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			func(ctx context.Context, sessionID string, answers []qa.Answer) (AnalysisReport, error) {
				start := time.Now()
				report, err := next.SubmitAnswers(ctx, sessionID, answers)
				recorder.ObserveRequest(OpSubmitAnswers, outcomeOf(err), time.Since(start))
				return report, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
		)
	}
}

// LoggingMiddleware logs one line per call with its outcome and duration.
func LoggingMiddleware(logger *logx.Logger) Middleware {
	if logger == nil {
		logger = logx.NewLogger("riskapi")
	}
	logCall := func(op string, started time.Time, err error, extra string) {
		elapsed := time.Since(started).Milliseconds()
		if err != nil {
			logger.Warn("%s failed after %dms: %v", op, elapsed, err)
			return
		}
		logger.Info("%s ok in %dms%s", op, elapsed, extra)
	}

	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req StartRequest) (StartResult, error) {
				start := time.Now()
				res, err := next.StartAnalysis(ctx, req)
				logCall(OpStartAnalysis, start, err, " session="+res.SessionID)
				return res, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			func(ctx context.Context, sessionID string) (QuestionSet, error) {
				start := time.Now()
				set, err := next.FetchQuestions(ctx, sessionID)
				logCall(OpFetchQuestions, start, err, "")
				if err == nil {
					logger.Debug("received %d questions for session %s", len(set.Questions), sessionID)
				}
				return set, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			func(ctx context.Context, sessionID string, answers []qa.Answer) (AnalysisReport, error) {
				start := time.Now()
				report, err := next.SubmitAnswers(ctx, sessionID, answers)
				logCall(OpSubmitAnswers, start, err, "")
				return report, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
		)
	}
}
