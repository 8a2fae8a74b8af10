package pdf

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-analyzer/internal/agent/document"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// buildPDF writes a minimal single-font PDF with one page per content stream.
func buildPDF(pageStreams ...string) []byte {
	var objects []string
	n := len(pageStreams)
	// 1: catalog, 2: pages, 3: font, then (page, content) pairs
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, stream := range pageStreams {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestOpen_RejectsNonPDF(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	_, err := p.Open([]byte("this is not a pdf"))
	require.Error(t, err)
}

func TestOpen_RejectsEmpty(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	_, err := p.Open(nil)
	require.Error(t, err)
}

func TestExtractPage_TextAndBlankPages(t *testing.T) {
	content := buildPDF(
		"BT /F1 12 Tf 72 720 Td (Hello PDF) Tj ET",
		"",
	)

	p := NewProcessor(logger.NewTestLogger())
	doc, err := p.Open(content)
	require.NoError(t, err)
	require.Equal(t, 2, doc.NumPage())

	first, ok := doc.ExtractPage(0).(document.TextLayer)
	require.True(t, ok, "page with a text layer")
	assert.Contains(t, first.Text, "Hello PDF")

	_, ok = doc.ExtractPage(1).(document.NeedsOCR)
	assert.True(t, ok, "blank page needs OCR")
}

func TestExtractPage_OutOfRangeNeedsOCR(t *testing.T) {
	p := NewProcessor(logger.NewTestLogger())
	doc, err := p.Open(buildPDF("BT /F1 12 Tf (x) Tj ET"))
	require.NoError(t, err)

	_, ok := doc.ExtractPage(5).(document.NeedsOCR)
	assert.True(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want document.PageContent
	}{
		{"empty", "", document.NeedsOCR{Reason: "no text layer"}},
		{"whitespace only", " \n\t  ", document.NeedsOCR{Reason: "no text layer"}},
		{"text kept verbatim", "  Terms\n", document.TextLayer{Text: "  Terms\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.text))
		})
	}
}
