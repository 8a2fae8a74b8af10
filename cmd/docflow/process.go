package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/internal/service/document"
	"github.com/feichai0017/pdf-analyzer/pkg/converters"
)

var processFlags struct {
	policy       string
	aggressive   bool
	noGenerate   bool
	outputDir    string
	writeSummary bool
	language     string
}

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>...",
	Short: "Run a batch of PDFs through the pipeline",
	Long: `Extracts text from each PDF (with OCR fallback), normalizes it, and writes the
transcript, cleaned text and generated artifacts to storage. Progress is printed
after every document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVar(&processFlags.policy, "policy", "", "OCR policy: per_page or whole_document")
	f.BoolVarP(&processFlags.aggressive, "aggressive", "a", false, "Strip bullets and symbols when normalizing")
	f.BoolVar(&processFlags.noGenerate, "no-generate", false, "Skip generated artifacts")
	f.StringVarP(&processFlags.outputDir, "output-dir", "o", "", "Write artifacts to this directory (local storage)")
	f.BoolVar(&processFlags.writeSummary, "write-summary", false, "Also write <name>_summary.txt")
	f.StringVarP(&processFlags.language, "lang", "l", "", "OCR language, e.g. eng or deu")
	rootCmd.AddCommand(processCmd)
}

// applyProcessFlags overrides cfg with the flags the user set.
func applyProcessFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("policy") {
		cfg.Pipeline.OCRPolicy = processFlags.policy
	}
	if f.Changed("aggressive") {
		cfg.Pipeline.AggressiveCleanup = processFlags.aggressive
	}
	if f.Changed("write-summary") {
		cfg.Pipeline.WriteSummary = processFlags.writeSummary
	}
	if f.Changed("lang") {
		cfg.Pipeline.Language = processFlags.language
	}
	if processFlags.noGenerate {
		cfg.Generator.Provider = "none"
	}
	if processFlags.outputDir != "" {
		cfg.Storage.Type = "local"
		cfg.Storage.LocalDir = processFlags.outputDir
	}
	return cfg.Validate()
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyProcessFlags(cmd, cfg); err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	docs, err := readDocuments(args, cfg.Pipeline.SizeLimit)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeService, err := document.GetService(ctx, cfg, log, document.ServiceOptions{})
	if err != nil {
		return err
	}
	defer closeService()

	out := cmd.OutOrStdout()
	batchID, events := svc.StreamBatch(ctx, docs)
	fmt.Fprintf(out, "Batch %s: %d document(s)\n", batchID, len(docs))

	outcomes := make([]models.BatchItemOutcome, 0, len(docs))
	for event := range events {
		printEvent(out, event)
		outcomes = append(outcomes, event.Outcome)
	}
	printSummary(out, batchID, outcomes)

	if cfg.Storage.Type == "local" {
		fmt.Fprintf(out, "Artifacts: %s\n", filepath.Join(cfg.Storage.LocalDir, batchID))
	}
	if converters.BatchStatus(outcomes) == models.StatusFailed {
		return fmt.Errorf("no document was processed successfully")
	}
	return nil
}

// readDocuments loads the named files. Files over limit are not read.
func readDocuments(paths []string, limit int64) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		name := filepath.Base(p)
		if info.Size() > limit {
			docs = append(docs, models.Document{Name: name, Size: info.Size()})
			continue
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, models.NewDocument(name, content))
	}
	return docs, nil
}

func printEvent(w io.Writer, event models.BatchEvent) {
	o := event.Outcome
	line := fmt.Sprintf("[%d/%d] %3.0f%%  %s  %s", event.Completed, event.Total, event.Progress*100, o.Document, o.Status)

	switch {
	case o.Status == models.StatusFailed || o.Status == models.StatusCancelled:
		line += ": " + o.Reason
	case o.Extraction != nil:
		line += fmt.Sprintf("  pages=%d words=%d", o.Extraction.PageCount, o.Cleaned.Words)
		if o.Extraction.UsedOCR {
			line += fmt.Sprintf(" ocr=%v", o.Extraction.OCRPages)
		}
	}
	fmt.Fprintln(w, line)

	for _, a := range o.Artifacts {
		if a.Failed() {
			fmt.Fprintf(w, "        %s: %s\n", a.Kind, a.Error)
		}
	}
}

func printSummary(w io.Writer, batchID string, outcomes []models.BatchItemOutcome) {
	counts := make(map[models.ProcessingStatus]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	var parts []string
	for _, s := range []models.ProcessingStatus{models.StatusCompleted, models.StatusPartial, models.StatusFailed, models.StatusCancelled} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}
	fmt.Fprintf(w, "Batch %s finished: %s\n", batchID, strings.Join(parts, ", "))
}
