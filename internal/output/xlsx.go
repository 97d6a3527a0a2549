package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the drug x effect matrix
const SheetName = "adverse_effects"

// WriteXLSX writes the same layout as WriteCSV to an Excel workbook.
// Missing values are left blank.
func (a *Aggregate) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	columns := a.Columns()
	if len(columns) > excelize.MaxColumns {
		return fmt.Errorf("%d columns exceed the xlsx limit of %d; use csv, json or sqlite", len(columns), excelize.MaxColumns)
	}
	if len(a.Drugs)+1 > excelize.TotalRows {
		return fmt.Errorf("%d rows exceed the xlsx limit of %d; use csv, json or sqlite", len(a.Drugs)+1, excelize.TotalRows)
	}

	for i, h := range columns {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}

	for i, row := range a.Matrix() {
		r := i + 2
		if err := setCell(f, 1, r, a.Drugs[i].DrugName); err != nil {
			return err
		}

		for j, v := range row {
			if v == nil {
				continue
			}
			if err := setCell(f, j+2, r, *v); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell %d,%d: %w", col, row, err)
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}
