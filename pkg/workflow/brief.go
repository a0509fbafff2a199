package workflow

import (
	"strings"

	"riskadvisor/pkg/apierrors"
	"riskadvisor/pkg/config"
	"riskadvisor/pkg/session"
)

// ProjectBrief is the user-submitted project description.
type ProjectBrief = session.ProjectBrief

// Brief field names used in validation errors.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldBudget      = "budget"
	FieldAnswers     = "answers"
)

const budgetConflictMessage = "enter a budget amount or mark it undecided, not both"

// BudgetFormat controls how the budget is sent to the service.
type BudgetFormat struct {
	UnitSuffix     string // Appended to amounts that do not already end with it
	UndecidedLabel string // Sent when the budget is undecided
}

// DefaultBudgetFormat returns the default wire format ("500" -> "500만원", undecided -> "미정").
func DefaultBudgetFormat() BudgetFormat {
	return BudgetFormat{UnitSuffix: config.DefaultUnitSuffix, UndecidedLabel: config.DefaultUndecidedLabel}
}

// BudgetFormatFromConfig maps the budget config section.
func BudgetFormatFromConfig(cfg *config.BudgetConfig) BudgetFormat {
	if cfg == nil {
		return DefaultBudgetFormat()
	}
	return BudgetFormat{UnitSuffix: cfg.UnitSuffix, UndecidedLabel: cfg.UndecidedLabel}
}

// Format returns the project_budget value for a validated brief.
func (f BudgetFormat) Format(b ProjectBrief) string {
	if b.BudgetUndecided {
		return f.UndecidedLabel
	}
	amount := strings.TrimSpace(b.Budget)
	if f.UnitSuffix == "" || strings.HasSuffix(amount, f.UnitSuffix) {
		return amount
	}
	return amount + f.UnitSuffix
}

// NormalizeBrief trims every text field.
func NormalizeBrief(b ProjectBrief) ProjectBrief {
	return ProjectBrief{
		Title:           strings.TrimSpace(b.Title),
		Description:     strings.TrimSpace(b.Description),
		Budget:          strings.TrimSpace(b.Budget),
		BudgetUndecided: b.BudgetUndecided,
	}
}

// ValidateBrief returns a validation error for the first unmet field in the order
// title, description, budget. The budget needs exactly one of an amount or the undecided flag.
func ValidateBrief(b ProjectBrief) error {
	b = NormalizeBrief(b)
	switch {
	case b.Title == "":
		return apierrors.NewValidation(FieldTitle)
	case b.Description == "":
		return apierrors.NewValidation(FieldDescription)
	case b.Budget == "" && !b.BudgetUndecided:
		return apierrors.NewValidation(FieldBudget)
	case b.Budget != "" && b.BudgetUndecided:
		err := apierrors.NewValidation(FieldBudget)
		err.Detail = budgetConflictMessage
		return err
	}
	return nil
}

// mergeDraft applies an edit to the draft. When both budget inputs end up set, the one
// the user just touched wins.
func mergeDraft(prev, next ProjectBrief) ProjectBrief {
	if next.Budget != "" && next.BudgetUndecided {
		if !prev.BudgetUndecided {
			next.Budget = ""
		} else {
			next.BudgetUndecided = false
		}
	}
	return next
}

// changedFields lists the brief fields that differ between two drafts.
func changedFields(prev, next ProjectBrief) []string {
	var fields []string
	if prev.Title != next.Title {
		fields = append(fields, FieldTitle)
	}
	if prev.Description != next.Description {
		fields = append(fields, FieldDescription)
	}
	if prev.Budget != next.Budget || prev.BudgetUndecided != next.BudgetUndecided {
		fields = append(fields, FieldBudget)
	}
	return fields
}
