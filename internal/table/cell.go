package table

import (
	"encoding/json"
	"strconv"
)

// CellKind tags the variant held by a Cell
type CellKind int

const (
	KindText   CellKind = iota // Verbatim (stripped) text
	KindNumber                 // Percentage or bare number in [0, 100]
)

func (k CellKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	default:
		return "text"
	}
}

// Cell is a parsed table cell: either a Number or a Text value.
// The zero value is an empty Text cell.
type Cell struct {
	kind CellKind
	num  float64
	text string
}

// NumberCell returns a Number cell
func NumberCell(v float64) Cell {
	return Cell{kind: KindNumber, num: v}
}

// TextCell returns a Text cell
func TextCell(s string) Cell {
	return Cell{kind: KindText, text: s}
}

// Kind reports which variant the cell holds
func (c Cell) Kind() CellKind {
	return c.kind
}

// Number returns the numeric value and true for Number cells
func (c Cell) Number() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// Text returns the text of a Text cell, or "" for Number cells
func (c Cell) Text() string {
	if c.kind != KindText {
		return ""
	}
	return c.text
}

// String renders the cell for display
func (c Cell) String() string {
	if c.kind == KindNumber {
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	}
	return c.text
}

// MarshalJSON encodes Number cells as JSON numbers and Text cells as strings
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.kind == KindNumber {
		return json.Marshal(c.num)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON accepts a JSON number or string; null decodes as empty Text.
// Numbers outside [0, MaxPercent] decode as Text, matching Normalize.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = TextCell("")
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		if num < 0 || num > MaxPercent {
			*c = TextCell(strconv.FormatFloat(num, 'f', -1, 64))
			return nil
		}
		*c = NumberCell(num)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*c = TextCell(text)
	return nil
}
