package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes one row per drug with a column per effect name
func (a *Aggregate) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	columns := a.Columns()
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range a.Matrix() {
		record[0] = a.Drugs[i].DrugName
		for j, v := range row {
			if v == nil {
				record[j+1] = a.NARep
			} else {
				record[j+1] = formatFloat(*v)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
