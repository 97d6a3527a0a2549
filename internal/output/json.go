package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ppiankov/sidefx/internal/model"
)

type jsonDrug struct {
	DrugName       string             `json:"drug_name"`
	LabelID        string             `json:"label_id,omitempty"`
	SetID          string             `json:"set_id,omitempty"`
	Source         model.EffectSource `json:"source"`
	Model          string             `json:"model,omitempty"`
	DroppedRows    int                `json:"dropped_rows,omitempty"`
	AdverseEffects map[string]float64 `json:"adverse_effects"`
}

// WriteJSON writes an indented array with one object per drug
func (a *Aggregate) WriteJSON(w io.Writer) error {
	out := make([]jsonDrug, len(a.Drugs))
	for i := range a.Drugs {
		d := &a.Drugs[i]
		out[i] = jsonDrug{
			DrugName:       d.DrugName,
			LabelID:        d.LabelID,
			SetID:          d.SetID,
			Source:         d.Source,
			Model:          d.Model,
			DroppedRows:    d.DroppedRows,
			AdverseEffects: d.EffectMap(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
