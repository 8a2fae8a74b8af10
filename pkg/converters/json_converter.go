package converters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/feichai0017/pdf-analyzer/internal/models"
)

// ReportConverter 定义批处理报告转换器接口
type ReportConverter interface {
	Convert(batchID string, outcomes []models.BatchItemOutcome) (*BatchReport, error)
}

// BatchReport 定义批处理报告结构
type BatchReport struct {
	TaskID      string           `json:"taskId"`
	Status      string           `json:"status"`
	Summary     ReportSummary    `json:"summary"`
	Documents   []DocumentReport `json:"documents"`
	ProcessedAt time.Time        `json:"processedAt"`
}

type ReportSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// DocumentReport 定义单个文档的结果
type DocumentReport struct {
	Index      int              `json:"index"`
	FileName   string           `json:"fileName"`
	FileSize   int64            `json:"fileSize"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	PageCount  int              `json:"pageCount,omitempty"`
	UsedOCR    bool             `json:"usedOcr"`
	OCRPages   []int            `json:"ocrPages,omitempty"`
	Policy     string           `json:"policy,omitempty"`
	Transcript string           `json:"transcript,omitempty"`
	Original   models.TextStats `json:"original"`
	Cleaned    models.TextStats `json:"cleaned"`
	Paragraphs int              `json:"paragraphs"`
	Artifacts  []ArtifactReport `json:"artifacts,omitempty"`
}

type ArtifactReport struct {
	Kind     string `json:"kind"`
	Location string `json:"location,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

// JSONConverter 实现报告转换器
type JSONConverter struct {
	now func() time.Time
}

func NewJSONConverter() *JSONConverter {
	return &JSONConverter{now: time.Now}
}

func (c *JSONConverter) Convert(batchID string, outcomes []models.BatchItemOutcome) (*BatchReport, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch id is required")
	}

	report := &BatchReport{
		TaskID:      batchID,
		Status:      string(BatchStatus(outcomes)),
		Documents:   make([]DocumentReport, 0, len(outcomes)),
		ProcessedAt: c.now(),
	}
	report.Summary.Total = len(outcomes)

	for _, o := range outcomes {
		switch o.Status {
		case models.StatusCompleted:
			report.Summary.Completed++
		case models.StatusPartial:
			report.Summary.Partial++
		case models.StatusCancelled:
			report.Summary.Cancelled++
		default:
			report.Summary.Failed++
		}
		report.Documents = append(report.Documents, documentReport(o))
	}

	return report, nil
}

// Marshal 序列化报告
func (c *JSONConverter) Marshal(report *BatchReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

func documentReport(o models.BatchItemOutcome) DocumentReport {
	d := DocumentReport{
		Index:    o.Index,
		FileName: o.Document,
		FileSize: o.Size,
		Status:   string(o.Status),
		Original: o.Original,
		Cleaned:  o.Cleaned,
	}
	if o.Status == models.StatusFailed || o.Status == models.StatusCancelled {
		d.Error = o.Reason
	}
	if o.Extraction != nil {
		d.PageCount = o.Extraction.PageCount
		d.UsedOCR = o.Extraction.UsedOCR
		d.OCRPages = o.Extraction.OCRPages
		d.Policy = string(o.Extraction.Policy)
		d.Transcript = o.Extraction.Transcript
	}
	if o.Normalized != nil {
		d.Paragraphs = len(o.Normalized.Paragraphs)
	}
	for _, a := range o.Artifacts {
		d.Artifacts = append(d.Artifacts, ArtifactReport{
			Kind:     string(a.Kind),
			Location: a.Location,
			Content:  a.Content,
			Error:    a.Error,
		})
	}
	return d
}

// BatchStatus derives the status of a whole batch from its outcomes. An
// empty batch is completed.
func BatchStatus(outcomes []models.BatchItemOutcome) models.ProcessingStatus {
	var succeeded, completed int
	for _, o := range outcomes {
		if o.Status == models.StatusCancelled {
			return models.StatusCancelled
		}
		if o.Succeeded() {
			succeeded++
		}
		if o.Status == models.StatusCompleted {
			completed++
		}
	}
	switch {
	case completed == len(outcomes):
		return models.StatusCompleted
	case succeeded == 0:
		return models.StatusFailed
	default:
		return models.StatusPartial
	}
}
