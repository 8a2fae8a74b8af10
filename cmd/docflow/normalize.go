package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-analyzer/internal/agent/document/text"
)

var normalizeAggressive bool

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize text read from stdin",
	Long:  `Reads raw text from stdin and writes the cleaned text to stdout, one paragraph per line.`,
	Args:  cobra.NoArgs,
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVarP(&normalizeAggressive, "aggressive", "a", false, "Strip bullets and symbols")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	normalized := text.NewNormalizer(normalizeAggressive).Normalize(string(raw))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), normalized.CleanedText)
	return err
}
