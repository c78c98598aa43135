package sitesurvey

import (
	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
)

// Dialect is a rooms-sheet layout. Both layouts carry a room identifier and a
// unique bed reference per column; they differ in how a bed is named.
type Dialect int

const (
	// DialectNumbered names beds "<room> - <bed number>" from the bed number row.
	DialectNumbered Dialect = iota + 1
	// DialectReference names beds by their unique reference.
	DialectReference
)

func (d Dialect) String() string {
	switch d {
	case DialectNumbered:
		return "numbered"
	case DialectReference:
		return "reference"
	default:
		return "unknown"
	}
}

// DetectDialect picks the layout of a rooms sheet from the questions present.
func DetectDialect(g *survey.Grid) (Dialect, error) {
	for _, q := range []survey.QuestionMatch{QuestionRoomIdentifier, QuestionBedReference} {
		if _, err := g.FindRow(q); err != nil {
			return 0, err
		}
	}
	row, err := g.FindOptionalRow(QuestionBedNumber)
	if err != nil {
		return 0, err
	}
	if row >= 0 {
		return DialectNumbered, nil
	}
	return DialectReference, nil
}

// ParseRooms reads every bed column of the rooms sheet and groups the beds
// into rooms of the facility identified by facilityCode.
func ParseRooms(g *survey.Grid, bound *taxonomy.Bound, facilityCode string) ([]CandidateRoom, error) {
	dialect, err := DetectDialect(g)
	if err != nil {
		return nil, err
	}
	notesRow, err := g.FindOptionalRow(QuestionRoomNotes)
	if err != nil {
		return nil, err
	}
	hasNotes := notesRow >= 0

	columns := g.UnitColumns()
	if len(columns) == 0 {
		return nil, survey.MalformedSheet(g.Sheet(), "no bed columns")
	}

	units := make([]Unit, 0, len(columns))
	for _, col := range columns {
		u, err := parseUnit(g, bound, dialect, hasNotes, col)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return GroupUnits(g.Sheet(), facilityCode, units)
}

func parseUnit(g *survey.Grid, bound *taxonomy.Bound, dialect Dialect, hasNotes bool, col int) (Unit, error) {
	u := Unit{Column: col}

	var err error
	if u.RoomIdentifier, err = g.Answer(QuestionRoomIdentifier, col); err != nil {
		return Unit{}, err
	}
	if u.BedCode, err = g.Answer(QuestionBedReference, col); err != nil {
		return Unit{}, err
	}

	switch dialect {
	case DialectNumbered:
		bedNumber, err := g.Answer(QuestionBedNumber, col)
		if err != nil {
			return Unit{}, err
		}
		u.BedName = u.RoomIdentifier + " - " + bedNumber
	default:
		u.BedName = u.BedCode
	}

	if hasNotes {
		if u.Notes, err = g.OptionalAnswer(QuestionRoomNotes, col); err != nil {
			return Unit{}, err
		}
	}

	if u.Characteristics, err = bound.Apply(g, facility.ModelRoom, col); err != nil {
		return Unit{}, err
	}
	return u, nil
}
