package document

import (
	"context"
	"image"
)

// PageContent 单页文本层的提取结果: TextLayer 或 NeedsOCR
type PageContent interface {
	isPageContent()
}

// TextLayer is a page whose text layer holds non-whitespace text.
type TextLayer struct {
	Text string
}

// NeedsOCR is a page with no usable text layer.
type NeedsOCR struct {
	Reason string
}

func (TextLayer) isPageContent() {}
func (NeedsOCR) isPageContent()  {}

// TextLayerReader opens the embedded text layer of a PDF.
type TextLayerReader interface {
	Open(content []byte) (TextLayerDocument, error)
}

// TextLayerDocument exposes per-page text. Page indices are zero-based.
type TextLayerDocument interface {
	NumPage() int
	// ExtractPage never fails; a page it cannot read is reported as NeedsOCR.
	ExtractPage(index int) PageContent
}

// Rasterizer renders PDF pages to images for OCR.
type Rasterizer interface {
	Open(content []byte) (RasterDocument, error)
}

// RasterDocument renders pages on demand. Page indices are zero-based.
type RasterDocument interface {
	NumPage() int
	RenderPage(index int) (image.Image, error)
	Close() error
}

// Recognizer runs OCR over one page image. An empty result is not an error.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, language string) (string, error)
}

// TranscriptWriter persists the raw text of a document.
type TranscriptWriter interface {
	WriteTranscript(ctx context.Context, documentID, text string) (string, error)
}
