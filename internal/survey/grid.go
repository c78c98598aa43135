// Package survey turns a position-dependent survey sheet into typed answers.
//
// A sheet has one question per row and one unit per column: column 0 holds the
// question labels, row 0 is a pseudo-header, and columns 1..N hold the answers
// for each premises, room or bed. Questions are located by label, never by
// row index.
package survey

// Grid is an immutable sheet of cells.
type Grid struct {
	sheet   string
	rows    [][]Cell
	columns int
}

// NewGrid builds a Grid from rows of cells. It fails with MalformedSheet when
// no row has at least a label column and one answer column.
func NewGrid(sheet string, rows [][]Cell) (*Grid, error) {
	width := 0
	copied := make([][]Cell, len(rows))
	for i, row := range rows {
		copied[i] = append([]Cell(nil), row...)
		if len(row) > width {
			width = len(row)
		}
	}
	if width < 2 {
		return nil, MalformedSheet(sheet, "expected a question column and at least one answer column, found %d column(s)", width)
	}
	return &Grid{sheet: sheet, rows: copied, columns: width}, nil
}

// Sheet returns the sheet name.
func (g *Grid) Sheet() string { return g.sheet }

// Columns returns the width of the widest row.
func (g *Grid) Columns() int { return g.columns }

// Rows returns the number of rows including the header.
func (g *Grid) Rows() int { return len(g.rows) }

// Cell returns the cell at row, col. Cells outside the grid are blank.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g.rows) || col < 0 || col >= len(g.rows[row]) {
		return Empty()
	}
	return g.rows[row][col]
}

// Header returns the row 0 cell for col.
func (g *Grid) Header(col int) Cell {
	return g.Cell(0, col)
}

// UnitColumns returns the answer columns that carry at least one non-blank
// cell below the header. Trailing formatting-only columns are skipped.
func (g *Grid) UnitColumns() []int {
	var cols []int
	for col := 1; col < g.columns; col++ {
		for row := 1; row < len(g.rows); row++ {
			if !g.Cell(row, col).IsBlank() {
				cols = append(cols, col)
				break
			}
		}
	}
	return cols
}
