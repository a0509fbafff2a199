package riskapi

import (
	"encoding/json"

	"riskadvisor/pkg/qa"
)

// Backend endpoints.
const (
	PathInitial   = "/api/v1/analyze/initial"
	PathQuestions = "/api/v1/analyze/questions"
	PathReport    = "/api/v1/analyze/report"
)

// Operation names used in errors, logs and metrics.
const (
	OpStartAnalysis  = "start_analysis"
	OpFetchQuestions = "fetch_questions"
	OpSubmitAnswers  = "submit_answers"
)

// StartRequest is the body of POST /api/v1/analyze/initial.
type StartRequest struct {
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
	ProjectBudget       string `json:"project_budget"`
}

// StartResult is a successful start-analysis response.
type StartResult struct {
	SessionID string `json:"session_id"`
}

// QuestionSet is a successful questions response.
type QuestionSet struct {
	SessionID      string        `json:"session_id"`
	Questions      []qa.Question `json:"questions"`
	TotalQuestions int           `json:"total_questions"`
}

// AnalysisReport is the structured result of a submission. Its shape is owned by the
// backend; Raw keeps the exact payload for adapters that render more than the typed fields.
type AnalysisReport struct {
	BusinessName      string   `json:"business_name,omitempty"`
	OverallRiskScore  float64  `json:"overall_risk_score"`
	Severity          int      `json:"severity"`
	Occurrence        int      `json:"occurrence"`
	Detection         int      `json:"detection"`
	TotalExpectedLoss float64  `json:"total_expected_loss"`
	TimeCost          float64  `json:"time_cost"`
	DirectInvestment  float64  `json:"direct_investment"`
	PersonnelCost     float64  `json:"personnel_cost"`
	ExecutiveSummary  string   `json:"executive_summary"`
	AIRecommendations []string `json:"ai_recommendations"`

	Raw json.RawMessage `json:"-"`
}

// CostShares are the cost categories as integer percentages of the total expected loss.
type CostShares struct {
	Time  int
	Capex int
	Opex  int
}

// RiskScoreInt truncates the overall score for gauge display.
func (r *AnalysisReport) RiskScoreInt() int {
	return int(r.OverallRiskScore)
}

// RPN is the FMEA risk priority number severity x occurrence x detection.
func (r *AnalysisReport) RPN() int {
	return r.Severity * r.Occurrence * r.Detection
}

// CostShares breaks the expected loss down by category. A zero total yields zero shares.
func (r *AnalysisReport) CostShares() CostShares {
	if r.TotalExpectedLoss <= 0 {
		return CostShares{}
	}
	pct := func(v float64) int { return int(v * 100 / r.TotalExpectedLoss) }
	return CostShares{
		Time:  pct(r.TimeCost),
		Capex: pct(r.DirectInvestment),
		Opex:  pct(r.PersonnelCost),
	}
}

type questionsRequest struct {
	SessionID string `json:"session_id"`
}

type reportRequest struct {
	SessionID string      `json:"session_id"`
	Answers   []qa.Answer `json:"answers"`
}

// wire shapes with pointers so missing required fields can be told apart from empty ones.
type questionsResponse struct {
	SessionID      string          `json:"session_id"`
	Questions      *[]wireQuestion `json:"questions"`
	TotalQuestions *int            `json:"total_questions"`
}

type wireQuestion struct {
	QuestionID   *string  `json:"question_id"`
	Method       string   `json:"method"`
	QuestionText *string  `json:"question_text"`
	QuestionType string   `json:"question_type"`
	Choices      []string `json:"choices"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}
