package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/plain; charset=utf-8", contentType("b1/report_keywords.txt"))
	assert.Equal(t, "application/pdf", contentType("b1/report.pdf"))
	assert.Equal(t, "application/json", contentType("b1/report.json"))
	assert.Equal(t, "application/octet-stream", contentType("b1/blob"))
}
