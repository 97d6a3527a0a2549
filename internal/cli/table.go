package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/sidefx/internal/extract"
	"github.com/ppiankov/sidefx/internal/table"
	"github.com/spf13/cobra"
)

var tableEffects bool

// tableCmd represents the table command
var tableCmd = &cobra.Command{
	Use:   "table <file|->",
	Short: "Parse one HTML adverse reactions table and print it as JSON",
	Long: `Table runs the deterministic table parser on an HTML fragment and prints
the headers, the normalized rows and the rows dropped for a cell count
mismatch. Percentages such as '29 %' and '<1 %' become numbers.

Example:
  sidefx table reactions.html
  echo '<table>...</table>' | sidefx table -
  sidefx table reactions.html --effects`,
	Args: cobra.ExactArgs(1),
	RunE: runTable,
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.Flags().BoolVar(&tableEffects, "effects", false, "print the derived effect list instead of the table")
}

func runTable(cmd *cobra.Command, args []string) error {
	htmlContent, err := readInput(args[0])
	if err != nil {
		return err
	}

	t, err := table.Extract(htmlContent)
	if err != nil {
		return err
	}

	var v any = t
	if tableEffects {
		v = extract.TableEffects(t)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	if verbose && len(t.Dropped) > 0 {
		fmt.Fprintf(os.Stderr, "%d rows dropped (cell count mismatch)\n", len(t.Dropped))
	}
	return nil
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
