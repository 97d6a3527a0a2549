// Package extract turns parsed label content into adverse effect lists.
package extract

import (
	"strings"

	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/table"
)

// TableEffects derives effects from a parsed table without a language model.
//
// The first column names the effect. The value is read from the first other
// column that holds a number and is not a placebo column; a placebo column,
// when present, fills Effect.Placebo.
func TableEffects(t *table.Table) []model.Effect {
	if t == nil || len(t.Headers) < 2 {
		return nil
	}

	nameHeader := t.Headers[0]
	placeboHeader := ""
	valueHeader := ""

	for _, h := range t.Headers[1:] {
		if h == nameHeader {
			continue
		}
		if isPlacebo(h) {
			if placeboHeader == "" {
				placeboHeader = h
			}
			continue
		}
		if valueHeader == "" && hasNumber(t.Column(h)) {
			valueHeader = h
		}
	}
	if valueHeader == "" {
		return nil
	}

	var effects []model.Effect
	for _, row := range t.Rows {
		nameCell := row[nameHeader]
		if nameCell.Kind() != table.KindText {
			continue
		}
		pct, ok := row[valueHeader].Number()
		if !ok {
			continue
		}

		effect := model.Effect{
			Name:       nameCell.Text(),
			Percentage: pct,
		}
		if placeboHeader != "" {
			if p, ok := row[placeboHeader].Number(); ok {
				effect.Placebo = &p
			}
		}
		effects = append(effects, effect)
	}

	return CleanEffects(effects)
}

// CleanEffects trims names and drops entries that are empty, out of range,
// or repeat an earlier name (case-insensitive). Order is preserved.
func CleanEffects(effects []model.Effect) []model.Effect {
	seen := make(map[string]bool)
	out := make([]model.Effect, 0, len(effects))

	for _, e := range effects {
		e.Name = strings.Join(strings.Fields(e.Name), " ")
		if e.Name == "" || !inRange(e.Percentage) {
			continue
		}
		if e.Placebo != nil && !inRange(*e.Placebo) {
			e.Placebo = nil
		}

		key := strings.ToLower(e.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}

	return out
}

func inRange(v float64) bool {
	return v >= 0 && v <= table.MaxPercent
}

func isPlacebo(header string) bool {
	return strings.Contains(strings.ToLower(header), "placebo")
}

func hasNumber(cells []table.Cell) bool {
	for _, c := range cells {
		if c.Kind() == table.KindNumber {
			return true
		}
	}
	return false
}
