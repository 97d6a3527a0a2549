package model

// Effect is one adverse effect reported for a drug
type Effect struct {
	Name       string   `json:"name"`              // Normalized adverse effect name (e.g., "Nausea")
	Percentage float64  `json:"percentage"`        // Incidence in treated patients (0-100)
	Placebo    *float64 `json:"placebo,omitempty"` // Incidence in the placebo arm, when reported
}

// DrugEffects is the extraction result for a single drug label
type DrugEffects struct {
	DrugName    string       `json:"drug_name"`              // openFDA generic name
	LabelID     string       `json:"label_id,omitempty"`     // Label document ID
	SetID       string       `json:"set_id,omitempty"`       // SPL set ID
	Source      EffectSource `json:"source"`                 // How the effects were obtained
	Effects     []Effect     `json:"effects"`                // Ordered as extracted
	DroppedRows int          `json:"dropped_rows,omitempty"` // Table rows discarded for bad arity
	Model       string       `json:"model,omitempty"`        // LLM model, when Source is llm
}

// EffectSource records which extractor produced a result
type EffectSource string

const (
	SourceLLM   EffectSource = "llm"   // Language model extraction
	SourceTable EffectSource = "table" // Deterministic table parser
	SourceCache EffectSource = "cache" // Cached language model extraction
)

// EffectMap returns the effects keyed by name
func (d *DrugEffects) EffectMap() map[string]float64 {
	m := make(map[string]float64, len(d.Effects))
	for _, e := range d.Effects {
		m[e.Name] = e.Percentage
	}
	return m
}
