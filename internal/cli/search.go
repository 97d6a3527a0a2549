package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ppiankov/sidefx/internal/fda"
	"github.com/ppiankov/sidefx/internal/pipeline"
	"github.com/ppiankov/sidefx/internal/worker"
	"github.com/spf13/cobra"
)

var (
	searchLimit   int
	searchOut     string
	searchExtract bool
	searchTimeout time.Duration
	respectRobots bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <adverse-effect>",
	Short: "Find drug labels whose adverse reactions table mentions an effect",
	Long: `Search queries the openFDA drug label API for labels whose
adverse_reactions_table mentions the given effect and writes the result bundle.

With --extract the labels are run through the extraction pipeline instead and
the aggregate is written using the extract output flags.

Example:
  sidefx search nausea --out data/nausea.json
  sidefx search "QT prolongation" --limit 100
  sidefx search nausea --extract --mode table --out nausea.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", fda.MaxLimit, "maximum labels to return (1-1000)")
	searchCmd.Flags().StringVar(&searchOut, "out", "-", "output path ('-' for stdout)")
	searchCmd.Flags().BoolVar(&searchExtract, "extract", false, "extract adverse effects from the matching labels")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 10*time.Minute, "total timeout")
	searchCmd.Flags().BoolVar(&respectRobots, "respect-robots", false, "check robots.txt on the API host")

	// Extraction flags shared with extract
	searchCmd.Flags().StringVar(&outFormat, "format", "", "output format with --extract: csv, json, xlsx, sqlite")
	searchCmd.Flags().StringVar(&mode, "mode", "auto", "extraction mode with --extract: auto, llm, table")
	searchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	searchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
	searchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers with --extract")
	searchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable LLM response cache")
}

func runSearch(cmd *cobra.Command, args []string) error {
	effect := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if searchExtract {
		applyExtractFlags(cmd, cfg)
		if err := requireAPIKey(cfg); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("respect-robots") {
		cfg.HTTP.RespectRobots = respectRobots
	}

	ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
	defer cancel()

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	client := fda.NewClient(fda.ConfigFromModel(cfg), fda.WithLimiter(limiter))

	if verbose {
		fmt.Fprintf(os.Stderr, "Searching: %s\n", fda.Redact(client.SearchURL(effect, searchLimit)))
	}

	bundle, err := client.Search(ctx, effect, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ %d labels mention %q (total matches: %d)\n", len(bundle.Results), effect, bundle.Meta.Results.Total)

	if !searchExtract {
		return writeJSON(searchOut, bundle)
	}

	p := pipeline.NewPipeline(cfg, limiter)
	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	processor.OnResult = func(r *worker.LabelResult) {
		printResult(r, cfg.Output.Verbose)
	}

	results := processor.ProcessLabels(ctx, bundle.Results)
	agg, summary := collect(results, cfg.Output.NARep)

	path := searchOut
	if !cmd.Flags().Changed("out") {
		path = cfg.Output.Path
	}
	if err := agg.Write(cfg.Output.Format, path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Extracted %d drugs (%d skipped, %d failed) to %s\n", summary.extracted, summary.skipped, summary.failed, path)
	return nil
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	if path != "-" {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	}
	return nil
}
