package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
	"github.com/danieldevos90/brutally-honest-ai/internal/pipeline"
	"github.com/danieldevos90/brutally-honest-ai/internal/worker"
)

var (
	checkFile        string
	checkBatch       string
	checkJSON        bool
	checkConcurrency int
	checkDocs        []string
	checkTimeout     time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Validate a statement and print its credibility report",
	Long: `Check extracts the claims in a statement, looks for evidence in the
knowledge base and prints a credibility report.

The statement is read from the arguments, --file, or stdin. With --batch,
every line of the file is checked as a separate statement.

Example:
  brutally-honest check "A giraffe has a long neck"
  brutally-honest check --docs ./knowledge "A fish can fly, a giraffe has a long neck"
  brutally-honest check --file transcript.txt --json
  brutally-honest check --batch statements.txt --concurrency 4`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "read the statement from a file")
	checkCmd.Flags().StringVar(&checkBatch, "batch", "", "check every line of a file as its own statement")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print reports as JSON")
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", runtime.NumCPU(), "statements checked in parallel with --batch")
	checkCmd.Flags().StringSliceVar(&checkDocs, "docs", nil, "documents or directories to ingest before checking")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Minute, "overall timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := currentConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	comps, err := pipeline.Build(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	if comps.Classifier == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: no classifier available (llm.provider=%q); claims with evidence will be UNVERIFIED\n", cfg.LLM.Provider)
	}
	if len(checkDocs) > 0 {
		if err := ingestPaths(ctx, cmd.ErrOrStderr(), comps.Ingester, checkDocs); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if checkBatch != "" {
		return runBatch(ctx, cmd.ErrOrStderr(), out, comps.Analyzer, checkBatch)
	}

	text, err := readStatement(args, checkFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	report, err := comps.Analyzer.Check(ctx, text)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if checkJSON {
		return writeJSON(out, report)
	}
	renderReport(out, report)
	return nil
}

func runBatch(ctx context.Context, stderr, out io.Writer, checker worker.Checker, file string) error {
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch check\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(stderr, "  Workers:      %d\n", checkConcurrency)
	fmt.Fprintf(stderr, "\n")

	processor := worker.NewBatchProcessor(checker, checkConcurrency)
	start := time.Now()
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if checkJSON {
		type batchItem struct {
			Line   int                      `json:"line"`
			Text   string                   `json:"text"`
			Report *model.CredibilityReport `json:"report,omitempty"`
			Error  string                   `json:"error,omitempty"`
		}
		items := make([]batchItem, 0, len(results))
		for _, r := range results {
			item := batchItem{Line: r.Index + 1, Text: r.Text, Report: r.Report}
			if r.Error != nil {
				item.Error = r.Error.Error()
			}
			items = append(items, item)
		}
		if err := writeJSON(out, items); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(out, "── %d. %s\n", r.Index+1, r.Text)
			if r.Error != nil {
				fmt.Fprintf(out, "   ✗ %v\n\n", r.Error)
				continue
			}
			renderReport(out, r.Report)
		}
	}

	fmt.Fprintf(stderr, "✓ Checked %d statements in %s (%d failed)\n", len(results), time.Since(start).Round(time.Millisecond), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(results))
	}
	return nil
}

// readStatement takes the statement from args, a file, or stdin in that order
func readStatement(args []string, file string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read statement: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// renderReport prints a report for humans
func renderReport(w io.Writer, r *model.CredibilityReport) {
	if r.OverallScore != nil {
		fmt.Fprintf(w, "Credibility: %.0f%%\n", *r.OverallScore*100)
	} else {
		fmt.Fprintf(w, "Credibility: n/a\n")
	}
	fmt.Fprintf(w, "%s\n", r.Summary)
	if r.Transcript != "" {
		fmt.Fprintf(w, "\nTranscript:\n  %s\n", r.Transcript)
	}

	if len(r.Verdicts) > 0 {
		fmt.Fprintf(w, "\nClaims:\n")
	}
	for _, v := range r.Verdicts {
		fmt.Fprintf(w, "  %s %-10s %3.0f%%  %s\n", statusMark(v.Status), v.Status, v.Confidence*100, v.Claim.Text)
		if v.Explanation != "" {
			fmt.Fprintf(w, "       %s\n", v.Explanation)
		}
		for _, e := range v.Evidence {
			fmt.Fprintf(w, "       · [%s %.2f] %s\n", e.SourceType, e.RelevanceScore, truncate(e.Excerpt, 100))
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warning)
		}
	}
	fmt.Fprintln(w)
}

func statusMark(s model.VerdictStatus) string {
	switch s {
	case model.StatusVerified:
		return "✓"
	case model.StatusIncorrect:
		return "✗"
	case model.StatusNuanced:
		return "~"
	default:
		return "?"
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ingestPaths indexes files and the files directly inside directories
func ingestPaths(ctx context.Context, w io.Writer, ingester *pipeline.Ingester, paths []string) error {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		result, err := ingester.IngestDocument(ctx, filepath.Base(f), data, "")
		if err != nil {
			return fmt.Errorf("ingest %s: %w", f, err)
		}
		fmt.Fprintf(w, "✓ Ingested %s (%d chunks)\n", f, result.Chunks)
	}
	return nil
}
