// Package output aggregates per-drug results and writes them as CSV, JSON,
// XLSX or SQLite.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/sidefx/internal/model"
)

// Supported formats
const (
	FormatCSV    = "csv"
	FormatJSON   = "json"
	FormatXLSX   = "xlsx"
	FormatSQLite = "sqlite"
)

// DrugColumn is the first column of the tabular outputs
const DrugColumn = "drug_name"

// Aggregate holds the results of a batch in input order
type Aggregate struct {
	Drugs []model.DrugEffects

	// NARep marks missing values in CSV output
	NARep string
}

// NewAggregate creates an empty aggregate
func NewAggregate(naRep string) *Aggregate {
	return &Aggregate{NARep: naRep}
}

// Add appends a result
func (a *Aggregate) Add(d model.DrugEffects) {
	a.Drugs = append(a.Drugs, d)
}

// Len returns the number of drugs
func (a *Aggregate) Len() int {
	return len(a.Drugs)
}

// EffectNames returns the sorted union of effect names across all drugs
func (a *Aggregate) EffectNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range a.Drugs {
		for _, e := range d.Effects {
			if !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Columns returns drug_name followed by the sorted effect names
func (a *Aggregate) Columns() []string {
	return append([]string{DrugColumn}, a.EffectNames()...)
}

// Matrix returns one row per drug aligned to Columns. Missing values are nil.
func (a *Aggregate) Matrix() [][]*float64 {
	names := a.EffectNames()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	rows := make([][]*float64, len(a.Drugs))
	for i, d := range a.Drugs {
		row := make([]*float64, len(names))
		for _, e := range d.Effects {
			v := e.Percentage
			row[index[e.Name]] = &v
		}
		rows[i] = row
	}
	return rows
}

// Write writes the aggregate to path in the given format. An empty format
// is inferred from the file extension. Path "-" writes CSV or JSON to stdout.
func (a *Aggregate) Write(format, path string) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	format = strings.ToLower(format)

	switch format {
	case FormatCSV:
		return writeStream(path, a.WriteCSV)
	case FormatJSON:
		return writeStream(path, a.WriteJSON)
	case FormatXLSX:
		if path == "-" {
			return fmt.Errorf("xlsx output requires a file path")
		}
		return a.WriteXLSX(path)
	case FormatSQLite:
		if path == "-" {
			return fmt.Errorf("sqlite output requires a file path")
		}
		return a.WriteSQLite(path)
	default:
		return fmt.Errorf("unknown output format: %s (supported: csv, json, xlsx, sqlite)", format)
	}
}

// FormatFromPath infers an output format from a file extension, defaulting to CSV
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatCSV
	}
}

func writeStream(path string, write func(io.Writer) error) error {
	if path == "-" || path == "" {
		return write(os.Stdout)
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
