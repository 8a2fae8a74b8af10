package models

// ArtifactKind names one persisted text output of a document.
type ArtifactKind string

const (
	ArtifactSource       ArtifactKind = "source"
	ArtifactTranscript   ArtifactKind = "transcript"
	ArtifactCleaned      ArtifactKind = "cleaned"
	ArtifactSummary      ArtifactKind = "summary"
	ArtifactKeyTerms     ArtifactKind = "key_compliance_terms"
	ArtifactKeywords     ArtifactKind = "keywords"
	ArtifactRequirements ArtifactKind = "requirements"
)

// DerivedKinds are the artifact kinds produced by the generative-text
// collaborator, in the order they are requested.
var DerivedKinds = []ArtifactKind{
	ArtifactSummary,
	ArtifactKeyTerms,
	ArtifactKeywords,
	ArtifactRequirements,
}

// FileName returns the storage file name of the artifact for a document stem.
// Source keeps the uploaded extension.
func (k ArtifactKind) FileName(stem string) string {
	switch k {
	case ArtifactSource:
		return stem + ".pdf"
	case ArtifactTranscript:
		return stem + ".txt"
	default:
		return stem + "_" + string(k) + ".txt"
	}
}

// Artifact is the result of one derived-artifact step.
type Artifact struct {
	Kind     ArtifactKind `json:"kind"`
	Content  string       `json:"content,omitempty"`
	Location string       `json:"location,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Failed reports whether generating or persisting the artifact failed.
func (a Artifact) Failed() bool {
	return a.Error != ""
}

// BatchItemOutcome is the terminal result of one document in a batch.
type BatchItemOutcome struct {
	Index      int               `json:"index"`
	Document   string            `json:"document"`
	Size       int64             `json:"size"`
	Status     ProcessingStatus  `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Err        error             `json:"-"`
	Extraction *ExtractionResult `json:"extraction,omitempty"`
	Normalized *NormalizedText   `json:"normalized,omitempty"`
	Original   TextStats         `json:"original"`
	Cleaned    TextStats         `json:"cleaned"`
	Artifacts  []Artifact        `json:"artifacts,omitempty"`
}

// Succeeded reports whether the document produced normalized text.
func (o BatchItemOutcome) Succeeded() bool {
	return o.Status == StatusCompleted || o.Status == StatusPartial
}

// Artifact returns the artifact of the given kind, if recorded.
func (o BatchItemOutcome) Artifact(kind ArtifactKind) (Artifact, bool) {
	for _, a := range o.Artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// BatchEvent is emitted once per document, after its outcome is final.
type BatchEvent struct {
	Outcome   BatchItemOutcome `json:"outcome"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Progress  float64          `json:"progress"`
}

// Done reports whether this is the last event of the batch.
func (e BatchEvent) Done() bool {
	return e.Completed == e.Total
}
