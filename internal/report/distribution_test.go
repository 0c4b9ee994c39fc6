package report

import (
	"path/filepath"
	"testing"
	"time"

	"evento/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDistribution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	deadline := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := "accept"

	details := []models.AssignmentDetail{
		{
			Assignment:    models.Assignment{ID: 7, SubmissionID: 3, ReviewerID: 9, Deadline: deadline, Completed: true, Recommendation: &rec},
			Title:         "On Graphs",
			ReviewerName:  "Ana",
			ReviewerEmail: "ana@example.com",
		},
		{
			Assignment:    models.Assignment{ID: 8, SubmissionID: 4, ReviewerID: 10, Deadline: deadline},
			Title:         "On Trees",
			ReviewerName:  "Bruno",
			ReviewerEmail: "bruno@example.com",
		},
	}
	logs := []models.DistributionLog{
		{RunID: "run-1", StartedAt: deadline, FinishedAt: deadline, TotalSubmissions: 2, TotalAssignments: 2},
	}

	err := WriteDistribution(path, &models.Event{ID: 1, Name: "Congress"}, details, logs)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetAssignments)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Assignment", rows[0][0])
	assert.Equal(t, "On Graphs", rows[1][2])
	assert.Equal(t, "yes", rows[1][6])
	assert.Equal(t, "accept", rows[1][7])
	assert.Equal(t, "no", rows[2][6])

	runs, err := f.GetRows(SheetRuns)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[1][0])
	assert.Equal(t, "2", runs[1][5])
}

func TestWriteDistribution_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteDistribution(path, &models.Event{Name: "Empty"}, nil, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetAssignments)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
