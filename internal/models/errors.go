package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeLimitExceeded marks a document skipped because it is too large.
	ErrSizeLimitExceeded = errors.New("size exceeded")
	// ErrExtraction marks any failure to produce raw text for a document.
	ErrExtraction = errors.New("extraction failed")
	// ErrArtifactGeneration marks a failure of a single derived artifact.
	ErrArtifactGeneration = errors.New("artifact generation failed")
	// ErrCancelled marks documents not attempted because the batch was cancelled.
	ErrCancelled = errors.New("batch cancelled")
)

// SizeLimitError is returned for a document larger than the batch limit.
type SizeLimitError struct {
	Document string
	Size     int64
	Limit    int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: %s (%d bytes > %d bytes)", e.Document, ErrSizeLimitExceeded, e.Size, e.Limit)
}

func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimitExceeded
}

// ExtractionError is a PDF, rendering or OCR engine fault for one document.
// Stage tells where it happened: "store", "open", "ocr", "transcript" or "panic".
type ExtractionError struct {
	Document string
	Stage    string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s (%s): %v", e.Document, ErrExtraction, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// RecognitionError is an OCR engine fault on one page. DocumentExtractor wraps
// it in an ExtractionError, so both errors.As checks succeed on the result.
type RecognitionError struct {
	Page   int
	Engine string
	Err    error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition failed on page %d: %v", e.Engine, e.Page, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

func (e *RecognitionError) Is(target error) bool {
	return target == ErrExtraction
}

// ArtifactGenerationError is a failure producing or persisting one artifact kind.
type ArtifactGenerationError struct {
	Kind ArtifactKind
	Err  error
}

func (e *ArtifactGenerationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, ErrArtifactGeneration, e.Err)
}

func (e *ArtifactGenerationError) Unwrap() error {
	return e.Err
}

func (e *ArtifactGenerationError) Is(target error) bool {
	return target == ErrArtifactGeneration
}
