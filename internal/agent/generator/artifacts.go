package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feichai0017/pdf-analyzer/internal/models"
)

const systemInstruction = "You analyze banking, finance and regulatory compliance documents. Answer in plain text."

var prompts = map[models.ArtifactKind]string{
	models.ArtifactSummary:      "Summarize this banking/compliance-related document:\n",
	models.ArtifactKeyTerms:     "Extract key compliance terms or important points related to banking, finance, or regulations:\n\n",
	models.ArtifactKeywords:     "Extract keywords from the following document. One keyword per line:\n\n",
	models.ArtifactRequirements: "Extract all mandatory requirements as numbered list:\n\n",
}

// Prompt builds the generation prompt for one derived artifact kind.
func Prompt(kind models.ArtifactKind, cleanedText string) (string, error) {
	prefix, ok := prompts[kind]
	if !ok {
		return "", fmt.Errorf("no prompt for artifact kind %q", kind)
	}
	return prefix + cleanedText, nil
}

// PostProcess turns a raw generator answer into the artifact content.
// Keywords become a sorted, de-duplicated, lower-case list, one per line.
func PostProcess(kind models.ArtifactKind, output string) string {
	if kind == models.ArtifactKeywords {
		return strings.Join(Keywords(output), "\n")
	}
	return strings.TrimSpace(output)
}

// Keywords parses a one-keyword-per-line answer.
func Keywords(output string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, line := range strings.Split(output, "\n") {
		kw := strings.ToLower(strings.TrimSpace(line))
		if len([]rune(kw)) <= 1 {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	return keywords
}
