package document

import (
	"context"
	"fmt"
	"iter"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pdf-analyzer/internal/agent/document/text"
	"github.com/feichai0017/pdf-analyzer/internal/agent/generator"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

// Extractor produces the raw text of one document.
type Extractor interface {
	Extract(ctx context.Context, doc models.Document) (models.ExtractionResult, error)
}

// TextGenerator is the generative-text collaborator used for derived artifacts.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ArtifactWriter persists per-document artifacts and returns their location.
type ArtifactWriter interface {
	Write(ctx context.Context, documentID string, kind models.ArtifactKind, content string) (string, error)
	WriteBytes(ctx context.Context, documentID string, kind models.ArtifactKind, content []byte) (string, error)
}

// ContentLoader reads staged document content by storage key.
type ContentLoader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// OrchestratorConfig 批处理参数
type OrchestratorConfig struct {
	SizeLimit int64
	// ArtifactConcurrency bounds concurrent generator calls within one document.
	ArtifactConcurrency int
	// WriteSummary also persists the summary artifact; it is always kept in
	// the outcome.
	WriteSummary bool
}

// Orchestrator runs documents through extraction, normalization and artifact
// generation one at a time. A nil generator skips derived artifacts.
type Orchestrator struct {
	extractor  Extractor
	normalizer text.Normalizer
	generator  TextGenerator
	writer     ArtifactWriter
	loader     ContentLoader
	config     OrchestratorConfig
	logger     logger.Logger
}

func NewOrchestrator(
	extractor Extractor,
	normalizer text.Normalizer,
	gen TextGenerator,
	writer ArtifactWriter,
	log logger.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.ArtifactConcurrency < 1 {
		cfg.ArtifactConcurrency = 1
	}
	return &Orchestrator{
		extractor:  extractor,
		normalizer: normalizer,
		generator:  gen,
		writer:     writer,
		config:     cfg,
		logger:     log,
	}
}

// WithLoader returns a copy that reads documents with a Key and no Content
// through l, one document at a time.
func (o *Orchestrator) WithLoader(l ContentLoader) *Orchestrator {
	clone := *o
	clone.loader = l
	return &clone
}

// Process returns a lazy sequence with one event per document, in input
// order. Cancelling ctx stops work at the next document boundary; documents
// not started are reported as cancelled, so the last event always has
// progress 1.0. Breaking out of the range stops processing.
func (o *Orchestrator) Process(ctx context.Context, docs []models.Document) iter.Seq[models.BatchEvent] {
	return func(yield func(models.BatchEvent) bool) {
		total := len(docs)
		log := logger.FromContext(ctx, o.logger)
		start := time.Now()
		counts := make(map[models.ProcessingStatus]int)
		ids := artifactIDs(docs)

		for i, doc := range docs {
			doc.ID = ids[i]
			var outcome models.BatchItemOutcome
			if ctx.Err() != nil {
				outcome = cancelled(i, doc)
			} else {
				// 文档内部不响应取消，只在文档之间检查
				outcome = o.processDocument(context.WithoutCancel(ctx), i, doc)
			}
			counts[outcome.Status]++

			event := models.BatchEvent{
				Outcome:   outcome,
				Completed: i + 1,
				Total:     total,
				Progress:  float64(i+1) / float64(total),
			}
			if !yield(event) {
				log.Info("Batch consumer stopped early",
					logger.Int("completed", i+1),
					logger.Int("total", total),
				)
				return
			}
		}

		if total > 0 {
			log.Info("Batch finished",
				logger.Int("total", total),
				logger.Int("completed", counts[models.StatusCompleted]),
				logger.Int("partial", counts[models.StatusPartial]),
				logger.Int("failed", counts[models.StatusFailed]),
				logger.Int("cancelled", counts[models.StatusCancelled]),
				logger.Duration("elapsed", time.Since(start)),
			)
		}
	}
}

// Run drains Process and returns the outcomes.
func (o *Orchestrator) Run(ctx context.Context, docs []models.Document) []models.BatchItemOutcome {
	outcomes := make([]models.BatchItemOutcome, 0, len(docs))
	for event := range o.Process(ctx, docs) {
		outcomes = append(outcomes, event.Outcome)
	}
	return outcomes
}

// artifactIDs gives every document an id that is unique within the batch.
// The first document with a given id keeps it; later ones get "_<index>".
func artifactIDs(docs []models.Document) []string {
	ids := make([]string, len(docs))
	used := make(map[string]bool, len(docs))
	for i, doc := range docs {
		base := doc.ArtifactID()
		id := base
		for n := i; used[strings.ToLower(id)]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(id)] = true
		ids[i] = id
	}
	return ids
}

func cancelled(index int, doc models.Document) models.BatchItemOutcome {
	return models.BatchItemOutcome{
		Index:    index,
		Document: doc.Name,
		Size:     doc.Size,
		Status:   models.StatusCancelled,
		Reason:   models.ErrCancelled.Error(),
		Err:      models.ErrCancelled,
	}
}

func failed(outcome models.BatchItemOutcome, err error) models.BatchItemOutcome {
	outcome.Status = models.StatusFailed
	outcome.Reason = err.Error()
	outcome.Err = err
	return outcome
}

func (o *Orchestrator) processDocument(ctx context.Context, index int, doc models.Document) (outcome models.BatchItemOutcome) {
	log := logger.FromContext(ctx, o.logger).With(
		logger.String("document", doc.Name),
		logger.Int("index", index),
	)
	outcome = models.BatchItemOutcome{
		Index:    index,
		Document: doc.Name,
		Size:     doc.Size,
	}

	defer func() {
		if r := recover(); r != nil {
			err := &models.ExtractionError{Document: doc.Name, Stage: "panic", Err: fmt.Errorf("%v", r)}
			log.Error("Recovered from panic while processing document",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			outcome = failed(models.BatchItemOutcome{Index: index, Document: doc.Name, Size: doc.Size}, err)
		}
	}()

	// 1. 大小检查
	if doc.Size > o.config.SizeLimit {
		err := &models.SizeLimitError{Document: doc.Name, Size: doc.Size, Limit: o.config.SizeLimit}
		log.Warn("Document skipped", logger.Error(err))
		outcome = failed(outcome, err)
		outcome.Reason = models.ErrSizeLimitExceeded.Error()
		return outcome
	}

	stem := doc.ArtifactID()

	// 2. 读取暂存内容
	if doc.Content == nil && doc.Key != "" {
		content, err := o.load(ctx, doc.Key)
		if err != nil {
			err = &models.ExtractionError{Document: doc.Name, Stage: "store", Err: err}
			log.Error("Failed to load staged document", logger.Error(err))
			return failed(outcome, err)
		}
		doc.Content = content
	}

	// 3. 保存原始文件
	if _, err := o.writer.WriteBytes(ctx, stem, models.ArtifactSource, doc.Content); err != nil {
		err = &models.ExtractionError{Document: doc.Name, Stage: "store", Err: err}
		log.Error("Failed to store source document", logger.Error(err))
		return failed(outcome, err)
	}

	// 4. 提取文本
	extraction, err := o.extractor.Extract(ctx, doc)
	if err != nil {
		log.Error("Extraction failed", logger.Error(err))
		return failed(outcome, err)
	}
	outcome.Extraction = &extraction

	// 5. 规范化
	normalized := o.normalizer.Normalize(extraction.RawText)
	outcome.Normalized = &normalized
	outcome.Original = text.Stats(extraction.RawText)
	outcome.Cleaned = text.Stats(normalized.CleanedText)

	cleaned := models.Artifact{Kind: models.ArtifactCleaned}
	if loc, err := o.writer.Write(ctx, stem, models.ArtifactCleaned, normalized.CleanedText); err != nil {
		cleaned.Error = (&models.ArtifactGenerationError{Kind: models.ArtifactCleaned, Err: err}).Error()
	} else {
		cleaned.Location = loc
	}
	outcome.Artifacts = append(outcome.Artifacts, cleaned)

	// 6. 生成派生文本
	if o.generator != nil {
		outcome.Artifacts = append(outcome.Artifacts, o.generateArtifacts(ctx, log, stem, normalized.CleanedText)...)
	}

	outcome.Status = models.StatusCompleted
	failures := 0
	for _, a := range outcome.Artifacts {
		if a.Failed() {
			failures++
		}
	}
	if failures > 0 {
		outcome.Status = models.StatusPartial
		outcome.Reason = fmt.Sprintf("%d of %d artifacts failed", failures, len(outcome.Artifacts))
	}

	log.Info("Document processed",
		logger.String("status", string(outcome.Status)),
		logger.Bool("usedOcr", extraction.UsedOCR),
		logger.Int("pages", extraction.PageCount),
		logger.Int("words", outcome.Cleaned.Words),
	)
	return outcome
}

func (o *Orchestrator) load(ctx context.Context, key string) ([]byte, error) {
	if o.loader == nil {
		return nil, fmt.Errorf("no loader for staged content %s", key)
	}
	return o.loader.Load(ctx, key)
}

// generateArtifacts makes one generator call per derived kind. Each call is
// independent; a failure is recorded on its artifact only.
func (o *Orchestrator) generateArtifacts(ctx context.Context, log logger.Logger, stem, cleanedText string) []models.Artifact {
	artifacts := make([]models.Artifact, len(models.DerivedKinds))

	var g errgroup.Group
	g.SetLimit(o.config.ArtifactConcurrency)
	for i, kind := range models.DerivedKinds {
		artifacts[i].Kind = kind
		g.Go(func() error {
			content, loc, err := o.generateArtifact(ctx, stem, kind, cleanedText)
			if err != nil {
				err = &models.ArtifactGenerationError{Kind: kind, Err: err}
				log.Warn("Artifact generation failed",
					logger.String("kind", string(kind)),
					logger.Error(err),
				)
				artifacts[i].Error = err.Error()
			}
			artifacts[i].Content = content
			artifacts[i].Location = loc
			return nil
		})
	}
	g.Wait()

	return artifacts
}

func (o *Orchestrator) generateArtifact(ctx context.Context, stem string, kind models.ArtifactKind, cleanedText string) (content, location string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	prompt, err := generator.Prompt(kind, cleanedText)
	if err != nil {
		return "", "", err
	}
	output, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	content = generator.PostProcess(kind, output)

	if kind == models.ArtifactSummary && !o.config.WriteSummary {
		return content, "", nil
	}
	location, err = o.writer.Write(ctx, stem, kind, content)
	if err != nil {
		return content, "", err
	}
	return content, location, nil
}
