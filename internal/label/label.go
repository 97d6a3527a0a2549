// Package label decodes openFDA drug label documents.
package label

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Bundle is the top-level document of an openFDA bulk download or search response
type Bundle struct {
	Meta    Meta    `json:"meta"`
	Results []Label `json:"results"`
}

// Meta carries the openFDA result metadata
type Meta struct {
	LastUpdated string `json:"last_updated,omitempty"`
	Results     struct {
		Skip  int `json:"skip"`
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"results"`
}

// Label is a single structured product label
type Label struct {
	ID                    string   `json:"id"`
	SetID                 string   `json:"set_id,omitempty"`
	Version               string   `json:"version,omitempty"`
	EffectiveTime         string   `json:"effective_time,omitempty"`
	OpenFDA               OpenFDA  `json:"openfda"`
	AdverseReactions      []string `json:"adverse_reactions,omitempty"`
	AdverseReactionsTable []string `json:"adverse_reactions_table,omitempty"`
}

// OpenFDA holds the harmonized fields openFDA adds to a label
type OpenFDA struct {
	GenericName      []string `json:"generic_name,omitempty"`
	BrandName        []string `json:"brand_name,omitempty"`
	ManufacturerName []string `json:"manufacturer_name,omitempty"`
	SPLSetID         []string `json:"spl_set_id,omitempty"`
}

// DrugName returns the first generic name, or "" if the label has none
func (l *Label) DrugName() string {
	return first(l.OpenFDA.GenericName)
}

// TableHTML returns the first adverse reactions table, or ""
func (l *Label) TableHTML() string {
	return first(l.AdverseReactionsTable)
}

// ReactionsText returns the first adverse reactions section, or ""
func (l *Label) ReactionsText() string {
	return first(l.AdverseReactions)
}

// Decode reads a bundle from r
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode label bundle: %w", err)
	}
	return &b, nil
}

// ReadFile reads a bundle from a JSON file
func ReadFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	b, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ExpandPaths expands glob patterns in order, dropping duplicates.
// A pattern that matches nothing is kept verbatim so opening it reports the error.
func ExpandPaths(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		sort.Strings(matches)

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}

	return paths, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
