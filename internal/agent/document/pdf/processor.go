package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/pdf-analyzer/internal/agent/document"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// Processor reads the embedded text layer of PDFs.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger: logger,
	}
}

// Open parses the PDF cross-reference table. The parser panics on some
// malformed files, which is reported as an error here.
func (p *Processor) Open(content []byte) (doc document.TextLayerDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	// 创建一个bytes.Reader，它实现了io.ReaderAt接口
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}
	return &textLayer{reader: pdfReader, logger: p.logger}, nil
}

type textLayer struct {
	reader *pdf.Reader
	logger logger.Logger
}

func (t *textLayer) NumPage() int {
	return t.reader.NumPage()
}

// ExtractPage 提取单页文本; 缺失或只有空白的文本层都视为需要 OCR
func (t *textLayer) ExtractPage(index int) (content document.PageContent) {
	pageNum := index + 1
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("Text layer extraction panicked",
				logger.Int("page", pageNum),
				logger.Any("panic", r),
			)
			content = document.NeedsOCR{Reason: fmt.Sprintf("unreadable text layer: %v", r)}
		}
	}()

	page := t.reader.Page(pageNum)
	if page.V.IsNull() {
		return document.NeedsOCR{Reason: "page object missing"}
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		t.logger.Debug("Failed to get text from page",
			logger.Int("page", pageNum),
			logger.Error(err),
		)
		return document.NeedsOCR{Reason: err.Error()}
	}
	return classify(text)
}

func classify(text string) document.PageContent {
	if strings.TrimSpace(text) == "" {
		return document.NeedsOCR{Reason: "no text layer"}
	}
	return document.TextLayer{Text: text}
}
