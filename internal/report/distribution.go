// Package report renders event data into spreadsheet downloads.
package report

import (
	"fmt"
	"log/slog"

	"evento/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetAssignments = "Assignments"
	SheetRuns        = "Runs"
)

var (
	assignmentHeader = []any{"Assignment", "Submission", "Title", "Reviewer", "Reviewer email",
		"Deadline", "Completed", "Recommendation", "Re-evaluation"}
	runHeader = []any{"Run", "Started", "Finished", "Duration (ms)", "Submissions",
		"Assignments", "Conflicts", "Fallbacks", "Failed"}
)

const timeLayout = "2006-01-02 15:04"

// WriteDistribution writes the assignments and distribution runs of an event
// to an .xlsx workbook at path
func WriteDistribution(path string, event *models.Event, details []models.AssignmentDetail, logs []models.DistributionLog) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetAssignments); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetRuns); err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetAssignments, "A1", &assignmentHeader); err != nil {
		return err
	}
	for i, d := range details {
		recommendation := ""
		if d.Recommendation != nil {
			recommendation = *d.Recommendation
		}
		row := []any{d.ID, d.SubmissionID, d.Title, d.ReviewerName, d.ReviewerEmail,
			d.Deadline.Format(timeLayout), yesNo(d.Completed), recommendation, yesNo(d.IsReevaluation)}
		if err := f.SetSheetRow(SheetAssignments, cell(i+2), &row); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(SheetRuns, "A1", &runHeader); err != nil {
		return err
	}
	for i, l := range logs {
		row := []any{l.RunID, l.StartedAt.Format(timeLayout), l.FinishedAt.Format(timeLayout), l.DurationMS,
			l.TotalSubmissions, l.TotalAssignments, l.ConflictsDetected, l.FallbackAssignments, l.FailedAssignments}
		if err := f.SetSheetRow(SheetRuns, cell(i+2), &row); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Distribution - %s", event.Name),
		Creator: "evento",
	}); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func cell(row int) string {
	name, _ := excelize.CoordinatesToCellName(1, row)
	return name
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
