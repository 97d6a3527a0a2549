package output

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/ppiankov/sidefx/internal/model"
	"github.com/xuri/excelize/v2"
)

func ptr(v float64) *float64 { return &v }

func sampleAggregate() *Aggregate {
	a := NewAggregate("")
	a.Add(model.DrugEffects{
		DrugName: "IBUPROFEN",
		LabelID:  "l1",
		SetID:    "s1",
		Source:   model.SourceLLM,
		Model:    "gpt-4o-mini",
		Effects: []model.Effect{
			{Name: "Nausea", Percentage: 29, Placebo: ptr(10)},
			{Name: "Headache", Percentage: 1},
		},
	})
	a.Add(model.DrugEffects{
		DrugName:    "ACETAMINOPHEN",
		LabelID:     "l2",
		Source:      model.SourceTable,
		DroppedRows: 2,
		Effects: []model.Effect{
			{Name: "Rash", Percentage: 0.5},
			{Name: "Nausea", Percentage: 3},
		},
	})
	return a
}

func TestAggregate_Columns(t *testing.T) {
	a := sampleAggregate()

	want := []string{"drug_name", "Headache", "Nausea", "Rash"}
	if got := a.Columns(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected columns %v, got %v", want, got)
	}

	if got := NewAggregate("").Columns(); !reflect.DeepEqual(got, []string{"drug_name"}) {
		t.Errorf("expected only drug_name for empty aggregate, got %v", got)
	}
}

func TestAggregate_Matrix(t *testing.T) {
	m := sampleAggregate().Matrix()
	if len(m) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m))
	}
	// Headache, Nausea, Rash
	if m[0][0] == nil || *m[0][0] != 1 || m[0][2] != nil {
		t.Errorf("unexpected first row")
	}
	if m[1][0] != nil || *m[1][1] != 3 || *m[1][2] != 0.5 {
		t.Errorf("unexpected second row")
	}
}

func TestWriteCSV(t *testing.T) {
	a := sampleAggregate()

	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	want := "drug_name,Headache,Nausea,Rash\nIBUPROFEN,1,29,\nACETAMINOPHEN,,3,0.5\n"
	if buf.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteCSV_NARep(t *testing.T) {
	a := sampleAggregate()
	a.NARep = "NA"

	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[1][3] != "NA" || records[2][1] != "NA" {
		t.Errorf("expected NA markers, got %v", records)
	}
}

func TestWriteCSV_QuotesNames(t *testing.T) {
	a := NewAggregate("")
	a.Add(model.DrugEffects{DrugName: "A, B", Effects: []model.Effect{{Name: `Pain "severe"`, Percentage: 2}}})

	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[0][1] != `Pain "severe"` || records[1][0] != "A, B" {
		t.Errorf("expected round-tripped names, got %v", records)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleAggregate().WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 drugs, got %d", len(out))
	}
	if out[0]["drug_name"] != "IBUPROFEN" || out[0]["source"] != "llm" {
		t.Errorf("unexpected first drug: %v", out[0])
	}
	effects := out[1]["adverse_effects"].(map[string]any)
	if effects["Rash"] != 0.5 {
		t.Errorf("expected Rash 0.5, got %v", effects["Rash"])
	}
	if out[1]["dropped_rows"] != float64(2) {
		t.Errorf("expected dropped_rows 2, got %v", out[1]["dropped_rows"])
	}
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "effects.xlsx")
	if err := sampleAggregate().Write("", path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], []string{"drug_name", "Headache", "Nausea", "Rash"}) {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "IBUPROFEN" || rows[1][2] != "29" {
		t.Errorf("unexpected first row: %v", rows[1])
	}

	blank, err := f.GetCellValue(SheetName, "B3")
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if blank != "" {
		t.Errorf("expected blank missing value, got %q", blank)
	}
}

func TestWriteXLSX_TooManyColumns(t *testing.T) {
	effects := make([]model.Effect, excelize.MaxColumns)
	for i := range effects {
		effects[i] = model.Effect{Name: "effect-" + strconv.Itoa(i), Percentage: 1}
	}
	a := NewAggregate("")
	a.Add(model.DrugEffects{DrugName: "WIDE", Effects: effects})

	path := filepath.Join(t.TempDir(), "wide.xlsx")
	err := a.WriteXLSX(path)
	if err == nil || !strings.Contains(err.Error(), "xlsx limit") {
		t.Fatalf("expected column limit error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("expected no workbook written, got %v", statErr)
	}

	// The same aggregate still fits in csv
	var buf bytes.Buffer
	if err := a.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.db")
	a := sampleAggregate()

	// Writing twice replaces the tables
	for i := 0; i < 2; i++ {
		if err := a.Write(FormatSQLite, path); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	var drugs int
	if err := db.QueryRow(`SELECT COUNT(*) FROM drugs`).Scan(&drugs); err != nil {
		t.Fatalf("count drugs: %v", err)
	}
	if drugs != 2 {
		t.Errorf("expected 2 drugs, got %d", drugs)
	}

	var pct float64
	var placebo sql.NullFloat64
	err = db.QueryRow(`
SELECT e.percentage, e.placebo FROM adverse_effects e
JOIN drugs d ON d.id = e.drug_id
WHERE d.drug_name = ? AND e.name = ?`, "IBUPROFEN", "Nausea").Scan(&pct, &placebo)
	if err != nil {
		t.Fatalf("query effect: %v", err)
	}
	if pct != 29 || !placebo.Valid || placebo.Float64 != 10 {
		t.Errorf("unexpected effect row: %v %v", pct, placebo)
	}

	var effects int
	if err := db.QueryRow(`SELECT COUNT(*) FROM adverse_effects`).Scan(&effects); err != nil {
		t.Fatalf("count effects: %v", err)
	}
	if effects != 4 {
		t.Errorf("expected 4 effect rows, got %d", effects)
	}
}

func TestWrite_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "adverse_effects.csv")
	if err := sampleAggregate().Write(FormatCSV, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "drug_name,") {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := sampleAggregate().Write("parquet", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := sampleAggregate().Write(FormatXLSX, "-"); err == nil {
		t.Error("expected error for xlsx to stdout")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"out.csv":      FormatCSV,
		"out.JSON":     FormatJSON,
		"out.xlsx":     FormatXLSX,
		"out.db":       FormatSQLite,
		"out.sqlite":   FormatSQLite,
		"no-extension": FormatCSV,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%s): expected %s, got %s", path, want, got)
		}
	}
}
