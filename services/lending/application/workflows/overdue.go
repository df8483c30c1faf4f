// Package workflows holds the lending context's Temporal workflows. They only
// report on loans; nothing here mutates stock or records.
package workflows

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

// OverdueReportWorkflowID is the fixed ID the cron schedule runs under.
const OverdueReportWorkflowID = "lending-overdue-report"

// OverdueReport is the result of one report run.
type OverdueReport struct {
	AsOf    time.Time `json:"as_of"`
	Overdue int       `json:"overdue"`
}

// Activities reads loan state for reports.
type Activities struct {
	Overdue repositories.OverdueReader
}

// CountOverdue counts loans whose due date passed before asOf.
func (a *Activities) CountOverdue(ctx context.Context, asOf time.Time) (int, error) {
	n, err := a.Overdue.CountOverdue(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}
	activity.GetLogger(ctx).Info("overdue loans counted", "as_of", asOf, "overdue", n)
	return n, nil
}

// OverdueReportWorkflow counts overdue loans as of the workflow's start time.
// The time comes from workflow.Now so replays see the same value.
func OverdueReportWorkflow(ctx workflow.Context) (OverdueReport, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	})

	report := OverdueReport{AsOf: workflow.Now(ctx).UTC()}
	var a *Activities
	if err := workflow.ExecuteActivity(ctx, a.CountOverdue, report.AsOf).Get(ctx, &report.Overdue); err != nil {
		return OverdueReport{}, err
	}

	workflow.GetLogger(ctx).Info("overdue report complete", "as_of", report.AsOf, "overdue", report.Overdue)
	return report, nil
}

// Registrar registers the lending workflows and activities on a worker.
type Registrar struct {
	Activities *Activities
}

// Register implements workflows.Registrar.
func (r Registrar) Register(w worker.Registry) {
	w.RegisterWorkflow(OverdueReportWorkflow)
	w.RegisterActivity(r.Activities)
}
