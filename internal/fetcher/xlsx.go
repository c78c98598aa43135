package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sitesurvey-cli/internal/survey"
)

// Workbook is an opened survey spreadsheet.
type Workbook struct {
	name string
	file *xlsx.File
}

// OpenWorkbook opens an .xlsx file from disk.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open file %s", path)
	}
	return &Workbook{name: path, file: f}, nil
}

// OpenWorkbookBytes opens an .xlsx document held in memory. name is only used
// in error messages.
func OpenWorkbookBytes(name string, data []byte) (*Workbook, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", name)
	}
	return &Workbook{name: name, file: f}, nil
}

// Name returns the path or source the workbook was read from.
func (w *Workbook) Name() string { return w.name }

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.file.Sheets))
	for i, s := range w.file.Sheets {
		names[i] = s.Name
	}
	return names
}

// HasSheet reports whether the workbook contains the named sheet.
func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.file.Sheet[name]
	return ok
}

// Grid converts the named sheet into a survey grid. A missing sheet is a
// MalformedSheet error.
func (w *Workbook) Grid(sheet string) (*survey.Grid, error) {
	s, ok := w.file.Sheet[sheet]
	if !ok {
		return nil, survey.MalformedSheet(sheet, "sheet not found in %s (sheets: %s)", w.name, strings.Join(w.SheetNames(), ", "))
	}

	rows := make([][]survey.Cell, len(s.Rows))
	for i, row := range s.Rows {
		if row == nil {
			continue
		}
		cells := make([]survey.Cell, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = toCell(cell)
		}
		rows[i] = cells
	}
	return survey.NewGrid(sheet, rows)
}

// ReadGrid opens path and returns one sheet as a grid.
func ReadGrid(path, sheet string) (*survey.Grid, error) {
	w, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	return w.Grid(sheet)
}

func toCell(c *xlsx.Cell) survey.Cell {
	if c == nil {
		return survey.Empty()
	}
	if c.Type() == xlsx.CellTypeNumeric {
		if f, err := c.Float(); err == nil {
			return survey.Number(f)
		}
	}
	return survey.Text(c.String())
}
