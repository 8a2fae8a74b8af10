package models

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType 文件类型
type FileType string

const (
	PDF FileType = "pdf"
)

// Document is an uploaded file as received at the upload boundary.
// Content may be nil when the file was never read, e.g. because Size already
// exceeded the limit, or because it is staged in storage under Key.
type Document struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
	Size    int64  `json:"size"`
	// ID keys the document's artifacts. Empty means Stem().
	ID string `json:"id,omitempty"`
	// Key is the storage key of staged content, read when Content is nil.
	Key string `json:"key,omitempty"`
}

// NewDocument builds a Document whose size is the length of content.
func NewDocument(name string, content []byte) Document {
	return Document{Name: name, Content: content, Size: int64(len(content))}
}

// ArtifactID returns the id artifacts are keyed by.
func (d Document) ArtifactID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Stem()
}

// Stem returns the base file name without directory and extension.
func (d Document) Stem() string {
	base := filepath.Base(d.Name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "document"
	}
	return stem
}

// OCRPolicy selects how DocumentExtractor falls back to OCR.
type OCRPolicy string

const (
	// PolicyPerPage OCRs only the pages without a usable text layer.
	PolicyPerPage OCRPolicy = "per_page"
	// PolicyWholeDocument discards the text layer and OCRs every page as soon
	// as one page lacks usable text.
	PolicyWholeDocument OCRPolicy = "whole_document"
)

// ExtractionResult is the raw text of one document.
type ExtractionResult struct {
	RawText   string    `json:"rawText"`
	UsedOCR   bool      `json:"usedOcr"`
	OCRPages  []int     `json:"ocrPages,omitempty"`
	PageCount int       `json:"pageCount"`
	Policy    OCRPolicy `json:"policy"`
	// Transcript is where the raw text was persisted, if a writer was set.
	Transcript string `json:"transcriptLocation,omitempty"`
}

// NormalizedText is the canonical form of an ExtractionResult's raw text.
// Paragraphs always has at least one element.
type NormalizedText struct {
	CleanedText string   `json:"cleanedText"`
	Paragraphs  []string `json:"paragraphs"`
}

// TextStats 文本统计
type TextStats struct {
	Words      int `json:"words"`
	Paragraphs int `json:"paragraphs"`
}

// ProcessingTask 批处理任务
type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    ProcessingStatus  `json:"status"`
	Type      string            `json:"type"`
	Progress  float64           `json:"progress"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusRunning   ProcessingStatus = "running"
	StatusCompleted ProcessingStatus = "completed"
	StatusPartial   ProcessingStatus = "partial"
	StatusFailed    ProcessingStatus = "failed"
	StatusCancelled ProcessingStatus = "cancelled"
)
