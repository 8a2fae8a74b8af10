package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	cfg "github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/agent/document"
	"github.com/feichai0017/pdf-analyzer/internal/agent/document/image"
	"github.com/feichai0017/pdf-analyzer/internal/agent/document/pdf"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

const (
	EngineTesseract = "tesseract"
	EngineTextract  = "textract"
)

// NewRecognizer 根据配置创建 OCR 引擎
func NewRecognizer(ctx context.Context, ocr cfg.OCRConfig, log logger.Logger) (document.Recognizer, error) {
	switch strings.ToLower(ocr.Engine) {
	case "", EngineTesseract:
		opts := image.DefaultTesseractOptions()
		if ocr.PageSegMode > 0 {
			opts.PageSegMode = gosseract.PageSegMode(ocr.PageSegMode)
		}
		opts.Preprocess = ocr.Preprocess
		return image.NewTesseractRecognizer(log, opts), nil

	case EngineTextract:
		minConfidence := ocr.Textract.MinConfidence
		if minConfidence == 0 {
			minConfidence = 80.0
		}
		r, err := image.NewTextractRecognizer(ctx, image.TextractConfig{
			Region:        ocr.Textract.Region,
			Endpoint:      ocr.Textract.Endpoint,
			AccessKey:     ocr.Textract.AccessKey,
			SecretKey:     ocr.Textract.SecretKey,
			MinConfidence: minConfidence,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract recognizer: %w", err)
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", ocr.Engine)
	}
}

// NewExtractor wires the text layer reader, rasterizer and recognizer named
// by c into a document.Extractor. Transcripts are bound per batch with
// Extractor.WithTranscripts.
func NewExtractor(ctx context.Context, c *cfg.Config, log logger.Logger) (*document.Extractor, error) {
	recognizer, err := NewRecognizer(ctx, c.OCR, log)
	if err != nil {
		return nil, err
	}

	extractor := document.NewExtractor(
		pdf.NewProcessor(log),
		image.NewFitzRasterizer(c.OCR.DPI),
		recognizer,
		log,
		document.WithPolicy(models.OCRPolicy(c.Pipeline.OCRPolicy)),
		document.WithLanguage(c.Pipeline.Language),
	)

	log.Info("Extractor configured",
		logger.String("engine", recognizer.Name()),
		logger.String("policy", string(extractor.Policy())),
		logger.Int("dpi", c.OCR.DPI),
	)
	return extractor, nil
}
