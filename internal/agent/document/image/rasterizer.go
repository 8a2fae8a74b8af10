package image

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/feichai0017/pdf-analyzer/internal/agent/document"
)

const DefaultDPI = 300

// FitzRasterizer renders PDF pages with MuPDF.
type FitzRasterizer struct {
	dpi float64
}

func NewFitzRasterizer(dpi int) *FitzRasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzRasterizer{dpi: float64(dpi)}
}

func (r *FitzRasterizer) Open(content []byte) (document.RasterDocument, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("failed to open document for rendering: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: r.dpi}, nil
}

type fitzDocument struct {
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int) (image.Image, error) {
	img, err := d.doc.ImageDPI(index, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
