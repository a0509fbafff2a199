package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadvisor/pkg/qa"
	"riskadvisor/pkg/riskapi"
	"riskadvisor/pkg/session"
)

func TestGauge(t *testing.T) {
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░]", gauge(0))
	assert.Equal(t, "[████████░░░░░░░░░░░░]", gauge(42))
	assert.Equal(t, "[████████████████████]", gauge(100))
	assert.Equal(t, gauge(100), gauge(250))
	assert.Equal(t, gauge(0), gauge(-3))
}

func TestRenderReport(t *testing.T) {
	report := riskapi.MockReport()
	var buf bytes.Buffer
	renderReport(&buf, &report, "ignored")

	out := buf.String()
	assert.Contains(t, out, "Risk analysis: 헬스케어 앱 런칭")
	assert.Contains(t, out, "42/100")
	assert.Contains(t, out, "RPN 210")
	assert.Contains(t, out, "₩45,000,000")
	assert.Contains(t, out, "₩13,500,000")
	assert.Contains(t, out, " 30%")
	assert.Contains(t, out, " 25%")
	assert.Contains(t, out, "3. 3단계")
}

func TestRenderReportFallbacks(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, &riskapi.AnalysisReport{}, "My project")
	out := buf.String()
	assert.Contains(t, out, "Risk analysis: My project")
	assert.Contains(t, out, "₩0")
	assert.NotContains(t, out, "Recommendations")

	buf.Reset()
	renderReport(&buf, nil, "")
	assert.Equal(t, "No report available.\n", buf.String())
}

func TestRenderAnswers(t *testing.T) {
	var buf bytes.Buffer
	renderAnswers(&buf, []qa.Question{{ID: "q1", Text: "Who?"}, {ID: "q2", Text: "When?"}}, qa.Answers{"q1": "Me", "q2": "Now"})
	assert.Contains(t, buf.String(), "1. Who?\n     Me")
	assert.Contains(t, buf.String(), "2. When?\n     Now")

	buf.Reset()
	renderAnswers(&buf, nil, nil)
	assert.Contains(t, buf.String(), "No questions")
}

func TestRenderArchived(t *testing.T) {
	raw, err := json.Marshal(riskapi.MockReport())
	require.NoError(t, err)

	var buf bytes.Buffer
	renderArchived(&buf, &session.ArchivedReport{
		Brief:     session.ProjectBrief{Title: "Diet planner"},
		Report:    raw,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	out := buf.String()
	assert.Contains(t, out, "Diet planner")
	assert.Contains(t, out, "risk  42")
	assert.Contains(t, out, "₩45,000,000")
	assert.Contains(t, out, "2 hours ago")

	buf.Reset()
	renderArchived(&buf, &session.ArchivedReport{Brief: session.ProjectBrief{Title: "Broken"}, Report: json.RawMessage("nope"), CreatedAt: time.Now()})
	assert.Contains(t, buf.String(), "unreadable report")
}
