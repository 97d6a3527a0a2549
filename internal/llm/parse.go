package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/sidefx/internal/extract"
	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/table"
)

// ParseError indicates the model returned output that is not usable JSON
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// ParseEffects decodes model output into a cleaned effect list.
//
// Accepted shapes:
//
//	{"Nausea": 29, "Headache": "<1 %"}
//	[{"name": "Nausea", "percentage": 29, "placebo": 10}]
//	{"adverse_effects": <either of the above>}
//
// String values go through table.Normalize; entries that do not resolve to a
// percentage are dropped.
func ParseEffects(raw string) ([]model.Effect, error) {
	text := stripCodeBlock(raw)
	if text == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("empty output")}
	}

	effects, err := decodeEffects(json.RawMessage(text))
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	return extract.CleanEffects(effects), nil
}

type effectItem struct {
	Name       string     `json:"name"`
	Effect     string     `json:"adverse_effect"`
	Percentage table.Cell `json:"percentage"`
	Placebo    table.Cell `json:"placebo"`
}

func decodeEffects(data json.RawMessage) ([]model.Effect, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []effectItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		effects := make([]model.Effect, 0, len(items))
		for _, item := range items {
			name := item.Name
			if name == "" {
				name = item.Effect
			}
			pct, ok := cellValue(item.Percentage)
			if !ok {
				continue
			}
			e := model.Effect{Name: name, Percentage: pct}
			if p, ok := cellValue(item.Placebo); ok {
				e.Placebo = &p
			}
			effects = append(effects, e)
		}
		return effects, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}

	for _, key := range []string{"adverse_effects", "effects"} {
		if nested, ok := obj[key]; ok && len(obj) == 1 {
			return decodeEffects(nested)
		}
	}

	// Preserve the order keys appear in the output
	keys, err := objectKeys(data)
	if err != nil {
		return nil, err
	}

	effects := make([]model.Effect, 0, len(keys))
	for _, name := range keys {
		var cell table.Cell
		if err := json.Unmarshal(obj[name], &cell); err != nil {
			continue
		}
		pct, ok := cellValue(cell)
		if !ok {
			continue
		}
		effects = append(effects, model.Effect{Name: name, Percentage: pct})
	}
	return effects, nil
}

// cellValue resolves a decoded value to a percentage
func cellValue(c table.Cell) (float64, bool) {
	if n, ok := c.Number(); ok {
		return n, true
	}
	return table.Normalize(c.Text()).Number()
}

// objectKeys returns the top-level keys of a JSON object in document order
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
