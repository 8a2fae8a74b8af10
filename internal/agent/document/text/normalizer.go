package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/feichai0017/pdf-analyzer/internal/models"
)

// a run of dashes followed by whitespace or the end of the line; bullets
// are already gone by the time it applies
var decorativeDash = regexp.MustCompile(`-+(?: |$)`)

// Normalizer turns raw extracted text into NormalizedText. It is pure and
// safe for concurrent use.
type Normalizer struct {
	// Aggressive additionally drops decorative dashes and bullets and any
	// character that is not a word character, whitespace or one of . , : -
	Aggressive bool
}

func NewNormalizer(aggressive bool) Normalizer {
	return Normalizer{Aggressive: aggressive}
}

// Normalize never fails. Normalize(Normalize(x).CleanedText) yields the same
// result as Normalize(x).
func (n Normalizer) Normalize(raw string) models.NormalizedText {
	composed := norm.NFC.String(raw)

	lines := strings.FieldsFunc(composed, isLineBreak)
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if n.Aggressive {
			line = stripDecorations(line)
		}
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}

	cleaned := strings.Join(paragraphs, "\n")
	if len(paragraphs) == 0 {
		paragraphs = []string{cleaned}
	}
	return models.NormalizedText{
		CleanedText: cleaned,
		Paragraphs:  paragraphs,
	}
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\u2028', '\u2029', '\u0085':
		return true
	}
	return false
}

func stripDecorations(line string) string {
	line = strings.Map(func(r rune) rune {
		if keepRune(r) {
			return r
		}
		return -1
	}, line)
	// collapse first so that unicode spaces count as whitespace for the dash rule
	line = strings.Join(strings.Fields(line), " ")
	line = decorativeDash.ReplaceAllString(line, " ")
	// dropping a character can leave a base letter next to its combining mark
	return norm.NFC.String(line)
}

func keepRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
		return true
	case unicode.IsSpace(r):
		return true
	}
	switch r {
	case '_', '.', ',', ':', '-':
		return true
	}
	return false
}

// Stats counts words and non-blank lines of text.
func Stats(s string) models.TextStats {
	stats := models.TextStats{Words: len(strings.Fields(s))}
	for _, line := range strings.FieldsFunc(s, isLineBreak) {
		if strings.TrimSpace(line) != "" {
			stats.Paragraphs++
		}
	}
	return stats
}
