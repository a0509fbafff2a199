package testkit

import (
	"encoding/json"
	"fmt"
)

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testkit: marshal fixture: %v", err))
	}
	return string(data)
}

// InitialBody is a start-analysis success body.
func InitialBody(sessionID string) string {
	return mustJSON(map[string]any{"session_id": sessionID})
}

// QuestionsBody is a questions success body with one text question per id.
func QuestionsBody(sessionID string, ids ...string) string {
	questions := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, map[string]any{
			"question_id":   id,
			"method":        "5W1H",
			"question_text": "Question " + id + "?",
			"question_type": "text",
		})
	}
	body := map[string]any{"questions": questions, "total_questions": len(ids)}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	return mustJSON(body)
}

// ReportBody is a report success body.
func ReportBody() string {
	return mustJSON(map[string]any{
		"business_name":       "Diet planner launch",
		"overall_risk_score":  42.5,
		"severity":            5,
		"occurrence":          6,
		"detection":           7,
		"total_expected_loss": 45000000,
		"time_cost":           13500000,
		"direct_investment":   11250000,
		"personnel_cost":      11250000,
		"executive_summary":   "Ship the MVP early and grow the AI features in stages.",
		"ai_recommendations":  []string{"Build the MVP", "Recruit beta testers", "Iterate on AI"},
	})
}

// DetailBody is an error body carrying a detail message.
func DetailBody(detail string) string {
	return mustJSON(map[string]any{"detail": detail})
}
