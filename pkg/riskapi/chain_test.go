package riskapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/metrics"
	"riskadvisor/pkg/qa"
)

type stubClient struct {
	startErr error
}

func (s *stubClient) StartAnalysis(_ context.Context, _ StartRequest) (StartResult, error) {
	if s.startErr != nil {
		return StartResult{}, s.startErr
	}
	return StartResult{SessionID: "S1"}, nil
}

func (s *stubClient) FetchQuestions(_ context.Context, sessionID string) (QuestionSet, error) {
	return QuestionSet{SessionID: sessionID}, nil
}

func (s *stubClient) SubmitAnswers(_ context.Context, _ string, _ []qa.Answer) (AnalysisReport, error) {
	return AnalysisReport{}, apierrors.NewParse(OpSubmitAnswers, apierrors.StageReport, errors.New("bad"))
}

func tracing(name string, trace *[]string) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req StartRequest) (StartResult, error) {
				*trace = append(*trace, name)
				return next.StartAnalysis(ctx, req)
			},
			next.FetchQuestions,
			next.SubmitAnswers,
		)
	}
}

func TestChainOrder(t *testing.T) {
	var trace []string
	client := Chain(&stubClient{}, tracing("outer", &trace), tracing("inner", &trace))

	res, err := client.StartAnalysis(context.Background(), StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, "S1", res.SessionID)
	assert.Equal(t, []string{"outer", "inner"}, trace)
}

type captureRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (c *captureRecorder) ObserveRequest(operation, outcome string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[string][]string)
	}
	c.outcomes[operation] = append(c.outcomes[operation], outcome)
}

func (c *captureRecorder) ObserveTransition(_, _ string) {}

func TestMetricsMiddlewareOutcomes(t *testing.T) {
	rec := &captureRecorder{}
	base := &stubClient{startErr: apierrors.NewNetwork(OpStartAnalysis, errors.New("reset"))}
	client := Chain(base, MetricsMiddleware(rec), LoggingMiddleware(nil))

	_, err := client.StartAnalysis(context.Background(), StartRequest{})
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindNetwork), "errors pass through unchanged")

	base.startErr = context.Canceled
	_, _ = client.StartAnalysis(context.Background(), StartRequest{})

	_, err = client.FetchQuestions(context.Background(), "S1")
	require.NoError(t, err)

	_, err = client.SubmitAnswers(context.Background(), "S1", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"network", metrics.OutcomeCanceled}, rec.outcomes[OpStartAnalysis])
	assert.Equal(t, []string{metrics.OutcomeSuccess}, rec.outcomes[OpFetchQuestions])
	assert.Equal(t, []string{"parse"}, rec.outcomes[OpSubmitAnswers])
}

func TestMetricsMiddlewareNilRecorder(t *testing.T) {
	client := Chain(&stubClient{}, MetricsMiddleware(nil))
	_, err := client.StartAnalysis(context.Background(), StartRequest{})
	assert.NoError(t, err)
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	first, err := m.StartAnalysis(ctx, StartRequest{})
	require.NoError(t, err)
	second, err := m.StartAnalysis(ctx, StartRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	set, err := m.FetchQuestions(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, set.SessionID)
	assert.Len(t, set.Questions, set.TotalQuestions)

	report, err := m.SubmitAnswers(ctx, first.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, report.RiskScoreInt())
	assert.Equal(t, CostShares{Time: 30, Capex: 25, Opex: 25}, report.CostShares())
	assert.NotEmpty(t, report.Raw)

	assert.Equal(t, 2, m.Calls(OpStartAnalysis))
	assert.Equal(t, 1, m.Calls(OpSubmitAnswers))
}

func TestMockClientDelayHonorsContext(t *testing.T) {
	m := NewMockClient(WithMockDelay(time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.FetchQuestions(ctx, "S1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
