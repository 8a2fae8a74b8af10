package converters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-analyzer/internal/models"
)

func fixedConverter() *JSONConverter {
	return &JSONConverter{now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }}
}

func TestConvert_Report(t *testing.T) {
	outcomes := []models.BatchItemOutcome{
		{
			Index: 0, Document: "a.pdf", Size: 10, Status: models.StatusCompleted,
			Extraction: &models.ExtractionResult{PageCount: 2, UsedOCR: true, OCRPages: []int{2}, Policy: models.PolicyPerPage, Transcript: "b/a.txt"},
			Normalized: &models.NormalizedText{CleanedText: "x\ny", Paragraphs: []string{"x", "y"}},
			Cleaned:    models.TextStats{Words: 2, Paragraphs: 2},
			Artifacts: []models.Artifact{
				{Kind: models.ArtifactCleaned, Location: "b/a_cleaned.txt"},
				{Kind: models.ArtifactSummary, Content: "short"},
			},
		},
		{Index: 1, Document: "big.pdf", Size: 1 << 30, Status: models.StatusFailed, Reason: "size exceeded"},
	}

	report, err := fixedConverter().Convert("batch-1", outcomes)
	require.NoError(t, err)

	assert.Equal(t, "batch-1", report.TaskID)
	assert.Equal(t, string(models.StatusPartial), report.Status)
	assert.Equal(t, ReportSummary{Total: 2, Completed: 1, Failed: 1}, report.Summary)
	require.Len(t, report.Documents, 2)

	first := report.Documents[0]
	assert.Equal(t, 2, first.PageCount)
	assert.Equal(t, []int{2}, first.OCRPages)
	assert.Equal(t, "b/a.txt", first.Transcript)
	assert.Equal(t, 2, first.Paragraphs)
	assert.Empty(t, first.Error)
	require.Len(t, first.Artifacts, 2)
	assert.Equal(t, "short", first.Artifacts[1].Content)

	assert.Equal(t, "size exceeded", report.Documents[1].Error)
}

func TestConvert_RequiresBatchID(t *testing.T) {
	_, err := NewJSONConverter().Convert("", nil)
	assert.Error(t, err)
}

func TestMarshal(t *testing.T) {
	c := fixedConverter()
	report, err := c.Convert("b", []models.BatchItemOutcome{{Document: "a.pdf", Status: models.StatusCompleted}})
	require.NoError(t, err)

	data, err := c.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "completed", decoded["status"])
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded["processedAt"])
}

func TestBatchStatus(t *testing.T) {
	of := func(statuses ...models.ProcessingStatus) []models.BatchItemOutcome {
		out := make([]models.BatchItemOutcome, len(statuses))
		for i, s := range statuses {
			out[i].Status = s
		}
		return out
	}

	assert.Equal(t, models.StatusCompleted, BatchStatus(nil))
	assert.Equal(t, models.StatusCompleted, BatchStatus(of(models.StatusCompleted, models.StatusCompleted)))
	assert.Equal(t, models.StatusPartial, BatchStatus(of(models.StatusCompleted, models.StatusFailed)))
	assert.Equal(t, models.StatusPartial, BatchStatus(of(models.StatusPartial)))
	assert.Equal(t, models.StatusFailed, BatchStatus(of(models.StatusFailed, models.StatusFailed)))
	assert.Equal(t, models.StatusCancelled, BatchStatus(of(models.StatusCompleted, models.StatusCancelled)))
}
