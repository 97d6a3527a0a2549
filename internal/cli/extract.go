package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ppiankov/sidefx/internal/label"
	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/output"
	"github.com/ppiankov/sidefx/internal/pipeline"
	"github.com/ppiankov/sidefx/internal/worker"
	"github.com/spf13/cobra"
)

var (
	outFormat    string
	outPath      string
	naRep        string
	mode         string
	concurrency  int
	batchTimeout time.Duration
	noCache      bool
	freeText     bool
	tableHint    bool
	llmProvider  string
	llmModel     string
	rps          float64
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <label-files...>",
	Short: "Extract adverse effects from openFDA label bundles",
	Long: `Extract reads openFDA drug label bundles and, for every label:
- Takes the openFDA generic name (labels without one are skipped)
- Reads the adverse reactions table (labels without one are skipped)
- Extracts effect names and percentages with an LLM or the table parser
- Writes one row per drug with a column per adverse effect

Glob patterns are expanded, so quoting them works on every shell.

Example:
  sidefx extract data/drug-label-0013-of-0013.json
  sidefx extract 'data/drug-label-*.json' --llm-provider openai --out data/adverse_effects.csv
  sidefx extract labels.json --mode table --format xlsx --out effects.xlsx
  sidefx extract labels.json --llm-provider ollama --llm-model llama3.1:8b --format sqlite --out effects.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	// Output flags
	extractCmd.Flags().StringVar(&outFormat, "format", "", "output format: csv, json, xlsx, sqlite (default: from --out extension)")
	extractCmd.Flags().StringVar(&outPath, "out", "data/adverse_effects.csv", "output path ('-' for stdout with csv/json)")
	extractCmd.Flags().StringVar(&naRep, "na-rep", "", "marker for missing values in CSV output")

	// Extraction flags
	extractCmd.Flags().StringVar(&mode, "mode", "auto", "extraction mode: auto, llm, table")
	extractCmd.Flags().BoolVar(&freeText, "free-text", false, "use the adverse_reactions text when a label has no table (LLM only)")
	extractCmd.Flags().BoolVar(&tableHint, "table-hint", false, "send the parsed table to the LLM along with the HTML")

	// Concurrency flags
	extractCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	extractCmd.Flags().DurationVar(&batchTimeout, "timeout", 2*time.Hour, "total timeout for batch processing")
	extractCmd.Flags().Float64Var(&rps, "rps", 2, "maximum LLM requests per second")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable LLM response cache")

	// LLM flags
	extractCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama); empty uses the table parser")
	extractCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (default: provider default, gpt-4o-mini for openai)")
}

// applyExtractFlags overrides configuration with flags the user set
func applyExtractFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = outFormat
	}
	if flags.Changed("out") {
		cfg.Output.Path = outPath
		if !flags.Changed("format") {
			cfg.Output.Format = ""
		}
	}
	if flags.Changed("na-rep") {
		cfg.Output.NARep = naRep
	}
	if flags.Changed("mode") {
		cfg.Extraction.Mode = model.ExtractionMode(mode)
	}
	if flags.Changed("free-text") {
		cfg.Extraction.UseFreeText = freeText
	}
	if flags.Changed("table-hint") {
		cfg.Extraction.UseTableHint = tableHint
	}
	if flags.Changed("concurrency") || cfg.Concurrency.Workers <= 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if flags.Changed("rps") {
		cfg.RateLimiting.RequestsPerSecond = rps
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("llm-provider") {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		resolveAPIKeys(cfg)
	}
	if flags.Changed("llm-model") {
		cfg.LLM.Model = llmModel
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyExtractFlags(cmd, cfg)

	if err := requireAPIKey(cfg); err != nil {
		return err
	}

	paths, err := label.ExpandPaths(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  sidefx Extraction\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input files:  %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", cfg.Extraction.Mode)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", cfg.Output.Path)
	if cfg.LLM.Provider != "" {
		modelName := cfg.LLM.Model
		if modelName == "" {
			modelName = "default"
		}
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, modelName)
	}
	fmt.Fprintf(os.Stderr, "\n")

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	p := pipeline.NewPipeline(cfg, limiter)

	if cfg.Extraction.Mode == model.ModeLLM {
		if !p.LLMEnabled() {
			return fmt.Errorf("--mode llm requires --llm-provider")
		}
		if err := p.CheckLLM(ctx); err != nil {
			return fmt.Errorf("--mode llm: %w", err)
		}
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	processor.OnResult = func(r *worker.LabelResult) {
		printResult(r, cfg.Output.Verbose)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Processing labels with %d workers...\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFiles(ctx, paths)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("process labels: %w", err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n✗ Batch timeout reached after %v, writing partial results\n", batchTimeout)
	}

	agg, summary := collect(results, cfg.Output.NARep)

	if err := agg.Write(cfg.Output.Format, cfg.Output.Path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Extraction Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Labels:     %d\n", summary.total)
	fmt.Fprintf(os.Stderr, "  Extracted:  %d (llm: %d, cache: %d, table: %d)\n",
		summary.extracted, summary.bySource[model.SourceLLM], summary.bySource[model.SourceCache], summary.bySource[model.SourceTable])
	fmt.Fprintf(os.Stderr, "  Skipped:    %d\n", summary.skipped)
	fmt.Fprintf(os.Stderr, "  Failures:   %d\n", summary.failed)
	fmt.Fprintf(os.Stderr, "  Effects:    %d distinct\n", len(agg.EffectNames()))
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", cfg.Output.Path)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

type batchSummary struct {
	total     int
	extracted int
	skipped   int
	failed    int
	bySource  map[model.EffectSource]int
}

// collect aggregates successful results in input order
func collect(results []*worker.LabelResult, naRep string) (*output.Aggregate, batchSummary) {
	agg := output.NewAggregate(naRep)
	summary := batchSummary{
		total:    len(results),
		bySource: make(map[model.EffectSource]int),
	}

	for _, r := range results {
		switch {
		case r.Error == nil && r.Effects != nil:
			summary.extracted++
			summary.bySource[r.Effects.Source]++
			agg.Add(*r.Effects)
		case pipeline.IsSkip(r.Error):
			summary.skipped++
		default:
			summary.failed++
		}
	}

	return agg, summary
}

func printResult(r *worker.LabelResult, verbose bool) {
	switch {
	case r.Error == nil && r.Effects != nil:
		fmt.Fprintf(os.Stderr, "✓ %s (%d effects, %s)\n", r.Effects.DrugName, len(r.Effects.Effects), r.Effects.Source)
		if verbose && r.Effects.DroppedRows > 0 {
			fmt.Fprintf(os.Stderr, "    %d table rows dropped (cell count mismatch)\n", r.Effects.DroppedRows)
		}
	case pipeline.IsSkip(r.Error):
		if verbose {
			fmt.Fprintf(os.Stderr, "- %v\n", r.Error)
		}
	default:
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.LabelID, r.Error)
	}
}
