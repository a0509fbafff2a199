package riskapi

import (
	"context"

	"riskadvisor/pkg/qa"
)

// Middleware wraps a Client with additional behavior.
type Middleware func(next Client) Client

type clientFunc struct {
	start  func(context.Context, StartRequest) (StartResult, error)
	fetch  func(context.Context, string) (QuestionSet, error)
	submit func(context.Context, string, []qa.Answer) (AnalysisReport, error)
}

func (f clientFunc) StartAnalysis(ctx context.Context, req StartRequest) (StartResult, error) {
	return f.start(ctx, req)
}

func (f clientFunc) FetchQuestions(ctx context.Context, sessionID string) (QuestionSet, error) {
	return f.fetch(ctx, sessionID)
}

func (f clientFunc) SubmitAnswers(ctx context.Context, sessionID string, answers []qa.Answer) (AnalysisReport, error) {
	return f.submit(ctx, sessionID, answers)
}

// WrapClient creates a Client from plain functions. It is a helper for middleware.
func WrapClient(
	start func(context.Context, StartRequest) (StartResult, error),
	fetch func(context.Context, string) (QuestionSet, error),
	submit func(context.Context, string, []qa.Answer) (AnalysisReport, error),
) Client {
	return clientFunc{start: start, fetch: fetch, submit: submit}
}

// Chain composes middlewares around a base Client. Earlier middlewares are outermost:
//
//	Chain(client, mw1, mw2) => mw1 -> mw2 -> client
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
