package extract

import (
	"testing"

	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/table"
)

func mustExtract(t *testing.T, html string) *table.Table {
	t.Helper()
	tbl, err := table.Extract(html)
	if err != nil {
		t.Fatalf("table.Extract failed: %v", err)
	}
	return tbl
}

func TestTableEffects_Basic(t *testing.T) {
	tbl := mustExtract(t, `<table><tbody>
		<tr><th>Reaction</th><th>Drug (%)</th><th>Placebo (%)</th></tr>
		<tr><td>Nausea</td><td>29 %</td><td>10 %</td></tr>
		<tr><td>Headache</td><td>&lt;1 %</td><td>0%</td></tr>
	</tbody></table>`)

	effects := TableEffects(tbl)
	if len(effects) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effects))
	}

	if effects[0].Name != "Nausea" || effects[0].Percentage != 29 {
		t.Errorf("unexpected first effect: %+v", effects[0])
	}
	if effects[0].Placebo == nil || *effects[0].Placebo != 10 {
		t.Errorf("expected placebo 10, got %v", effects[0].Placebo)
	}
	if effects[1].Name != "Headache" || effects[1].Percentage != 1 {
		t.Errorf("unexpected second effect: %+v", effects[1])
	}
}

func TestTableEffects_PlaceboFirst(t *testing.T) {
	tbl := mustExtract(t, `<table>
		<thead><tr><th>Event</th><th>Placebo N=100</th><th>Drug N=200</th></tr></thead>
		<tbody>
			<tr><td>Rash</td><td>2</td><td>6</td></tr>
			<tr><td>Dizziness</td><td>1</td><td>NR</td></tr>
		</tbody>
	</table>`)

	effects := TableEffects(tbl)
	if len(effects) != 1 {
		t.Fatalf("expected 1 effect, got %d: %+v", len(effects), effects)
	}
	if effects[0].Percentage != 6 || *effects[0].Placebo != 2 {
		t.Errorf("expected drug 6 / placebo 2, got %+v", effects[0])
	}
}

func TestTableEffects_NoNumericColumn(t *testing.T) {
	tbl := mustExtract(t, `<table><tr><td>Reaction</td><td>Comment</td></tr><tr><td>Rash</td><td>mild</td></tr></table>`)
	if effects := TableEffects(tbl); len(effects) != 0 {
		t.Errorf("expected no effects, got %+v", effects)
	}

	if effects := TableEffects(nil); effects != nil {
		t.Errorf("expected nil for nil table, got %+v", effects)
	}
}

func TestTableEffects_SkipsNumericNames(t *testing.T) {
	tbl := mustExtract(t, `<table><tr><td>Reaction</td><td>Drug</td></tr>
		<tr><td>12</td><td>3%</td></tr>
		<tr><td>Fatigue</td><td>4%</td></tr></table>`)

	effects := TableEffects(tbl)
	if len(effects) != 1 || effects[0].Name != "Fatigue" {
		t.Errorf("expected only Fatigue, got %+v", effects)
	}
}

func TestCleanEffects(t *testing.T) {
	bad := 140.0
	effects := CleanEffects([]model.Effect{
		{Name: "  Nausea\n ", Percentage: 29},
		{Name: "nausea", Percentage: 5},
		{Name: "", Percentage: 3},
		{Name: "Fever", Percentage: -1},
		{Name: "Rash", Percentage: 101},
		{Name: "Upper   respiratory infection", Percentage: 4, Placebo: &bad},
	})

	if len(effects) != 2 {
		t.Fatalf("expected 2 effects, got %d: %+v", len(effects), effects)
	}
	if effects[0].Name != "Nausea" || effects[0].Percentage != 29 {
		t.Errorf("expected first occurrence kept, got %+v", effects[0])
	}
	if effects[1].Name != "Upper respiratory infection" {
		t.Errorf("expected collapsed whitespace, got %q", effects[1].Name)
	}
	if effects[1].Placebo != nil {
		t.Error("expected out-of-range placebo to be cleared")
	}
}
