// Package table parses adverse reactions HTML tables into typed rows.
package table

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Table is the parsed form of a single HTML table
type Table struct {
	Headers []string     `json:"headers"`
	Rows    []Row        `json:"rows"`
	Dropped []DroppedRow `json:"dropped,omitempty"`
}

// Row maps a header to the cell found under it
type Row map[string]Cell

// DroppedRow records a body row discarded for having the wrong cell count
type DroppedRow struct {
	Index int `json:"index"` // Position among the body's <tr> rows (0-based)
	Cells int `json:"cells"` // Number of <td> cells found
}

// Extract parses the first table found in htmlContent.
//
// The header row is the first row of <thead> if present, otherwise the first
// row of <tbody>. Body rows whose <td> count differs from the header count
// are left out of Rows and listed in Dropped.
func Extract(htmlContent string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, newMalformed("unparseable html: " + err.Error())
	}

	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, newMalformed("no table present")
	}

	body := tbl.ChildrenFiltered("tbody").First()

	headerRow := tbl.ChildrenFiltered("thead").First().ChildrenFiltered("tr").First()
	if headerRow.Length() == 0 {
		headerRow = body.ChildrenFiltered("tr").First()
	}
	if headerRow.Length() == 0 {
		return nil, newMalformed("no header row")
	}

	headers := make([]string, 0)
	headerRow.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cellText(cell))
	})

	t := &Table{
		Headers: headers,
		Rows:    make([]Row, 0),
	}

	headerNode := headerRow.Get(0)
	body.ChildrenFiltered("tr").Each(func(i int, tr *goquery.Selection) {
		if isNode(tr, headerNode) {
			return
		}

		cells := tr.ChildrenFiltered("td")
		if cells.Length() != len(headers) {
			t.Dropped = append(t.Dropped, DroppedRow{Index: i, Cells: cells.Length()})
			return
		}

		row := make(Row, len(headers))
		cells.Each(func(j int, td *goquery.Selection) {
			row[headers[j]] = Normalize(cellText(td))
		})
		t.Rows = append(t.Rows, row)
	})

	return t, nil
}

// Column returns the cells of the named column in row order
func (t *Table) Column(header string) []Cell {
	out := make([]Cell, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[header])
	}
	return out
}

// cellText returns the trimmed text of a cell, leaving out nested tables
func cellText(s *goquery.Selection) string {
	if s.Find("table").Length() == 0 {
		return strings.TrimSpace(s.Text())
	}
	c := s.Clone()
	c.Find("table").Remove()
	return strings.TrimSpace(c.Text())
}

func isNode(s *goquery.Selection, n *html.Node) bool {
	return s.Length() > 0 && s.Get(0) == n
}
