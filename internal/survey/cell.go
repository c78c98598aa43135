package survey

import (
	"math"
	"strconv"
	"strings"
)

// CellKind tags the value held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

// Cell is a single spreadsheet value. Readers convert library-specific cell
// types into this union at the boundary so nothing downstream depends on the
// spreadsheet library.
type Cell struct {
	Kind CellKind
	Text string
	Num  float64
}

// Text returns a string cell, or an empty cell when s is blank.
func Text(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellString, Text: s}
}

// Number returns a numeric cell.
func Number(f float64) Cell {
	return Cell{Kind: CellNumber, Num: f}
}

// Empty returns a blank cell.
func Empty() Cell {
	return Cell{}
}

// IsBlank reports whether the cell has no usable value.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case CellString:
		return strings.TrimSpace(c.Text) == ""
	case CellNumber:
		return false
	default:
		return true
	}
}

// String renders the cell as a trimmed answer string. Numbers go through
// FormatNumber so whole numbers lose their trailing ".0".
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return strings.TrimSpace(c.Text)
	case CellNumber:
		return FormatNumber(c.Num)
	default:
		return ""
	}
}

// FormatNumber renders spreadsheet numbers, which are always floating point,
// without redundant decimals: 4.0 becomes "4" while 4.5 stays "4.5".
// A value meant literally as "1.0" is indistinguishable from 1 and renders "1".
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
