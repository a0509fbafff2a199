package riskapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"riskadvisor/pkg/qa"
)

// MockClient is an in-process analysis service returning canned data. It backs the
// CLI -mock mode and lets adapters be exercised without a backend.
type MockClient struct {
	mu       sync.Mutex
	delay    time.Duration
	sessions int
	calls    map[string]int
}

// MockOption configures a MockClient.
type MockOption func(*MockClient)

// WithMockDelay makes every call wait d (or until ctx is done) before answering.
func WithMockDelay(d time.Duration) MockOption {
	return func(m *MockClient) { m.delay = d }
}

// NewMockClient creates a canned client.
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{calls: make(map[string]int)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Calls returns how many times op was invoked.
func (m *MockClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockClient) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	delay := m.delay
	m.mu.Unlock()

	if delay <= 0 {
		return ctx.Err() //nolint:wrapcheck // context errors pass through
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context errors pass through
	case <-timer.C:
		return nil
	}
}

// StartAnalysis returns a fresh mock session id.
func (m *MockClient) StartAnalysis(ctx context.Context, _ StartRequest) (StartResult, error) {
	if err := m.enter(ctx, OpStartAnalysis); err != nil {
		return StartResult{}, err
	}
	m.mu.Lock()
	m.sessions++
	id := fmt.Sprintf("mock-session-%d", m.sessions)
	m.mu.Unlock()
	return StartResult{SessionID: id}, nil
}

// FetchQuestions returns the canned question set.
func (m *MockClient) FetchQuestions(ctx context.Context, sessionID string) (QuestionSet, error) {
	if err := m.enter(ctx, OpFetchQuestions); err != nil {
		return QuestionSet{}, err
	}
	questions := MockQuestions()
	return QuestionSet{SessionID: sessionID, Questions: questions, TotalQuestions: len(questions)}, nil
}

// SubmitAnswers returns the canned report.
func (m *MockClient) SubmitAnswers(ctx context.Context, _ string, _ []qa.Answer) (AnalysisReport, error) {
	if err := m.enter(ctx, OpSubmitAnswers); err != nil {
		return AnalysisReport{}, err
	}
	return MockReport(), nil
}

// MockQuestions is the canned question set.
func MockQuestions() []qa.Question {
	return []qa.Question{
		{ID: "q1", Method: "5W1H", Text: "핵심 타깃 고객은 누구입니까?", Type: qa.TypeText, Choices: []string{}},
		{ID: "q2", Method: "5W1H", Text: "출시 목표 시점은 언제입니까?", Type: qa.TypeText, Choices: []string{}},
		{ID: "q3", Method: "FMEA", Text: "가장 우려되는 실패 요인은 무엇입니까?", Type: qa.TypeText, Choices: []string{}},
	}
}

// MockReport is the canned analysis report.
func MockReport() AnalysisReport {
	r := AnalysisReport{
		BusinessName:      "헬스케어 앱 런칭",
		OverallRiskScore:  42.5,
		Severity:          5,
		Occurrence:        6,
		Detection:         7,
		TotalExpectedLoss: 45000000,
		TimeCost:          13500000,
		DirectInvestment:  11250000,
		PersonnelCost:     11250000,
		ExecutiveSummary:  "초기 자본과 기술 역량을 고려할 때 MVP를 빠르게 출시하되, AI 기능은 단계적으로 고도화하는 전략이 필요",
		AIRecommendations: []string{
			"1단계: 핵심 기능 MVP 개발 - 3개월 내 기본 다이어트 플래너 출시",
			"2단계: 사용자 피드백 수집 - 베타 테스터 100명 확보 및 개선",
			"3단계: AI 기능 고도화 - 맞춤형 추천 알고리즘 개발 착수",
		},
	}
	r.Raw, _ = json.Marshal(r)
	return r
}
