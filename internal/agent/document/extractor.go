package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

const (
	// DefaultLanguage is the OCR language used when none is configured.
	DefaultLanguage = "eng"
	// EmptyTranscript is persisted in place of a blank raw text.
	EmptyTranscript = "No text extracted."
)

var errNoPages = errors.New("document has no pages")

// Extractor produces the raw text of a PDF from its text layer, falling back
// to OCR according to its policy.
type Extractor struct {
	textLayer   TextLayerReader
	rasterizer  Rasterizer
	recognizer  Recognizer
	transcripts TranscriptWriter
	policy      models.OCRPolicy
	language    string
	logger      logger.Logger
}

type ExtractorOption func(*Extractor)

// WithPolicy selects the OCR fallback policy. Per-page is the default.
func WithPolicy(policy models.OCRPolicy) ExtractorOption {
	return func(e *Extractor) {
		e.policy = policy
	}
}

func WithLanguage(language string) ExtractorOption {
	return func(e *Extractor) {
		if language != "" {
			e.language = language
		}
	}
}

// WithTranscriptWriter makes Extract persist the raw text before returning.
func WithTranscriptWriter(w TranscriptWriter) ExtractorOption {
	return func(e *Extractor) {
		e.transcripts = w
	}
}

func NewExtractor(textLayer TextLayerReader, rasterizer Rasterizer, recognizer Recognizer, log logger.Logger, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		textLayer:  textLayer,
		rasterizer: rasterizer,
		recognizer: recognizer,
		policy:     models.PolicyPerPage,
		language:   DefaultLanguage,
		logger:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Policy() models.OCRPolicy {
	return e.policy
}

// WithTranscripts returns a copy of e that persists transcripts through w,
// e.g. an artifact store scoped to one batch.
func (e *Extractor) WithTranscripts(w TranscriptWriter) *Extractor {
	c := *e
	c.transcripts = w
	return &c
}

// Extract returns the raw text of doc, pages joined by "\n" in page order.
// Any failure is an *models.ExtractionError; an OCR fault additionally wraps a
// *models.RecognitionError.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) (models.ExtractionResult, error) {
	log := logger.FromContext(ctx, e.logger).With(logger.String("document", doc.Name))
	result := models.ExtractionResult{Policy: e.policy}

	pages, openErr := e.readTextLayer(doc.Content)
	if openErr != nil {
		log.Warn("Text layer unreadable, falling back to OCR for all pages", logger.Error(openErr))
	}

	var raster RasterDocument
	defer func() {
		if raster == nil {
			return
		}
		if err := raster.Close(); err != nil {
			log.Warn("Failed to close rasterized document", logger.Error(err))
		}
	}()

	pageCount := len(pages)
	if openErr != nil {
		var err error
		raster, err = e.rasterizer.Open(doc.Content)
		if err != nil {
			return result, &models.ExtractionError{Document: doc.Name, Stage: "open", Err: errors.Join(openErr, err)}
		}
		pageCount = raster.NumPage()
	}
	if pageCount == 0 {
		return result, &models.ExtractionError{Document: doc.Name, Stage: "open", Err: errNoPages}
	}
	result.PageCount = pageCount

	ocrPages := e.planOCR(pages, pageCount)
	segments := make([]string, pageCount)
	for i, content := range pages {
		if text, ok := content.(TextLayer); ok {
			segments[i] = text.Text
		}
	}

	if len(ocrPages) > 0 {
		if raster == nil {
			var err error
			raster, err = e.rasterizer.Open(doc.Content)
			if err != nil {
				return result, &models.ExtractionError{Document: doc.Name, Stage: "open", Err: err}
			}
		}
		for _, i := range ocrPages {
			text, err := e.recognizePage(ctx, raster, i)
			if err != nil {
				return result, &models.ExtractionError{Document: doc.Name, Stage: "ocr", Err: err}
			}
			segments[i] = text
			result.OCRPages = append(result.OCRPages, i+1)
		}
		result.UsedOCR = true
		log.Info("OCR fallback applied",
			logger.Int("pages", pageCount),
			logger.Int("ocrPages", len(ocrPages)),
			logger.String("policy", string(e.policy)),
		)
	}

	result.RawText = strings.Join(segments, "\n")

	if e.transcripts != nil {
		content := result.RawText
		if strings.TrimSpace(content) == "" {
			content = EmptyTranscript
		}
		location, err := e.transcripts.WriteTranscript(ctx, doc.ArtifactID(), content)
		if err != nil {
			return result, &models.ExtractionError{Document: doc.Name, Stage: "transcript", Err: err}
		}
		result.Transcript = location
	}

	return result, nil
}

func (e *Extractor) readTextLayer(content []byte) ([]PageContent, error) {
	tl, err := e.textLayer.Open(content)
	if err != nil {
		return nil, err
	}
	pages := make([]PageContent, tl.NumPage())
	for i := range pages {
		pages[i] = tl.ExtractPage(i)
	}
	return pages, nil
}

// planOCR returns the zero-based indices of the pages to OCR. With no text
// layer at all every page is OCR'd regardless of policy.
func (e *Extractor) planOCR(pages []PageContent, pageCount int) []int {
	all := func() []int {
		idx := make([]int, pageCount)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	if pages == nil {
		return all()
	}

	var missing []int
	for i, content := range pages {
		if _, ok := content.(NeedsOCR); ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 && e.policy == models.PolicyWholeDocument {
		return all()
	}
	return missing
}

func (e *Extractor) recognizePage(ctx context.Context, raster RasterDocument, index int) (string, error) {
	img, err := raster.RenderPage(index)
	if err != nil {
		return "", &models.RecognitionError{Page: index + 1, Engine: "render", Err: err}
	}
	if img == nil {
		return "", &models.RecognitionError{Page: index + 1, Engine: "render", Err: fmt.Errorf("rasterizer returned no image")}
	}
	text, err := e.recognizer.Recognize(ctx, img, e.language)
	if err != nil {
		return "", &models.RecognitionError{Page: index + 1, Engine: e.recognizer.Name(), Err: err}
	}
	return text, nil
}
