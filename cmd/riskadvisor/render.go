package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"riskadvisor/pkg/qa"
	"riskadvisor/pkg/riskapi"
	"riskadvisor/pkg/session"
)

const gaugeWidth = 20

func won(v float64) string {
	return "₩" + humanize.Comma(int64(v))
}

// gauge draws score (0-100) as a fixed-width bar.
func gauge(score int) string {
	score = min(max(score, 0), 100)
	filled := score * gaugeWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled) + "]"
}

// renderReport prints the analysis report. fallbackTitle is used when the report carries
// no business name.
func renderReport(w io.Writer, report *riskapi.AnalysisReport, fallbackTitle string) {
	if report == nil {
		fmt.Fprintln(w, "No report available.")
		return
	}
	title := report.BusinessName
	if title == "" {
		title = fallbackTitle
	}

	fmt.Fprintf(w, "\n📊 Risk analysis: %s\n", title)
	fmt.Fprintf(w, "Overall risk  %s %d/100\n", gauge(report.RiskScoreInt()), report.RiskScoreInt())
	fmt.Fprintf(w, "FMEA          severity %d  occurrence %d  detection %d  RPN %d\n",
		report.Severity, report.Occurrence, report.Detection, report.RPN())

	shares := report.CostShares()
	fmt.Fprintf(w, "\nExpected loss %s\n", won(report.TotalExpectedLoss))
	fmt.Fprintf(w, "  Time cost          %15s  %3d%%\n", won(report.TimeCost), shares.Time)
	fmt.Fprintf(w, "  Direct investment  %15s  %3d%%\n", won(report.DirectInvestment), shares.Capex)
	fmt.Fprintf(w, "  Personnel cost     %15s  %3d%%\n", won(report.PersonnelCost), shares.Opex)

	if report.ExecutiveSummary != "" {
		fmt.Fprintf(w, "\nSummary\n  %s\n", report.ExecutiveSummary)
	}
	if len(report.AIRecommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations")
		for i, rec := range report.AIRecommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
		}
	}
}

func renderAnswers(w io.Writer, questions []qa.Question, answers qa.Answers) {
	if len(questions) == 0 {
		fmt.Fprintln(w, "\nNo questions were generated for this brief.")
		return
	}
	fmt.Fprintln(w, "\nYour answers")
	for i := range questions {
		fmt.Fprintf(w, "  %d. %s\n     %s\n", i+1, questions[i].Text, answers[questions[i].ID])
	}
}

// renderArchived prints one line per archived report.
func renderArchived(w io.Writer, r *session.ArchivedReport) {
	var report riskapi.AnalysisReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		fmt.Fprintf(w, "%s  %-30s  (unreadable report: %v)\n", r.CreatedAt.Local().Format(time.DateTime), r.Brief.Title, err)
		return
	}
	fmt.Fprintf(w, "%s  %-30s  risk %3d  RPN %3d  loss %s  (%s)\n",
		r.CreatedAt.Local().Format(time.DateTime),
		r.Brief.Title,
		report.RiskScoreInt(),
		report.RPN(),
		won(report.TotalExpectedLoss),
		humanize.Time(r.CreatedAt),
	)
}
